// File: rterr/errors_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rterr_test

import (
	"errors"
	"testing"

	"github.com/coreshard/runtime/rterr"
)

func TestWrapPreservesCauseForErrorsIs(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := rterr.Wrap(rterr.CodeSyscallFailed, "operation failed", sentinel)

	if !errors.Is(wrapped, sentinel) {
		t.Fatal("errors.Is should see through Wrap to the underlying cause")
	}
}

func TestWithContextAppearsInErrorString(t *testing.T) {
	err := rterr.New(rterr.CodeInvalidArgument, "bad input").WithContext("field", "port")
	if got := err.Error(); got == "bad input" {
		t.Fatalf("Error()=%q, want context appended", got)
	}
}

func TestNewWithNoContextReturnsPlainMessage(t *testing.T) {
	err := rterr.New(rterr.CodeUnknown, "plain")
	if err.Error() != "plain" {
		t.Fatalf("Error()=%q, want %q", err.Error(), "plain")
	}
}

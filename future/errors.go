// File: future/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package future

import "errors"

// Programming-error sentinels. Per the error taxonomy, these are fatal:
// callers are expected to let them propagate as panics, not to recover
// and retry.
var (
	ErrFutureAlreadyRetrieved = errors.New("future: already retrieved from promise")
	ErrPromiseAlreadySatisfied = errors.New("future: promise already satisfied")
	ErrContinuationInstalled  = errors.New("future: continuation already installed")
	ErrNoState                = errors.New("future: promise or future has no backing state")
)

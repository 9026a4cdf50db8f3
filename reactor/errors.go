// File: reactor/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "errors"

// ErrReactorRegisterFailed is fatal: registration failure aborts the
// shard per spec.md section 7's error taxonomy.
var ErrReactorRegisterFailed = errors.New("reactor: fd registration failed")

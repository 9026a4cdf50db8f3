// Package netio implements the per-connection I/O state machine: a single
// reader and a single writer multiplexed onto one descriptor under
// edge-triggered semantics, with buffered drain, deferred flush, and
// graceful close (spec.md section 4.7).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package netio

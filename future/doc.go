// Package future implements the continuation composition primitive of the
// runtime: a Promise/Future pair backed by one reference-counted state
// cell per pair, allocated from a per-scheduler slab pool.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package future

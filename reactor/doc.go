// Package reactor implements the per-shard event loop: an epoll(7)-backed,
// edge-triggered readiness multiplexer combined with a monotonic timer
// heap, an eventfd-based cross-shard wake-up, and an in-shard pending-task
// queue (spec.md section 4.6).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package reactor

// File: slab/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package slab implements a per-owner-thread free-list allocator for a
// fixed object type with chunked backing storage (spec.md section 4.2).
//
// The C++ source threads the free list through a union so a freed node's
// storage doubles as the next-pointer. Go has no portable, GC-safe way to
// overlay a pointer and an arbitrary T in the same memory without
// unsafe.Pointer arithmetic that the garbage collector cannot see through
// safely, so this port tracks free nodes in a parallel []*T stack instead.
// The discipline spec.md actually requires — LIFO reuse, chunked growth,
// infallible allocation, cross-thread use asserted at runtime — is
// preserved exactly; only the storage trick for the free list differs.
package slab

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const defaultChunk = 256

// Pool is a free-list allocator for *T, strictly confined to the OS
// thread that created it. Get and Put both assert ownership; violating
// that from another thread is a programming error, not a recoverable
// condition (spec.md section 7 "Cross-thread pool use").
type Pool[T any] struct {
	ownerTID int
	chunk    int
	chunks   [][]T
	free     []*T
}

// NewPool creates a pool owned by the calling OS thread. chunkSize <= 0
// uses the default of 256 nodes per chunk (spec.md section 4.2).
func NewPool[T any](chunkSize int) *Pool[T] {
	if chunkSize <= 0 {
		chunkSize = defaultChunk
	}
	return &Pool[T]{ownerTID: unix.Gettid(), chunk: chunkSize}
}

func (p *Pool[T]) assertOwner() {
	if tid := unix.Gettid(); tid != p.ownerTID {
		panic(fmt.Sprintf("slab: cross-thread use (owner tid=%d, caller tid=%d)", p.ownerTID, tid))
	}
}

// grow obtains one more chunk of K backing nodes and pushes all of them
// onto the free list. Chunks are never returned to the system until the
// pool itself is dropped.
func (p *Pool[T]) grow() {
	block := make([]T, p.chunk)
	p.chunks = append(p.chunks, block)
	for i := range block {
		p.free = append(p.free, &block[i])
	}
}

// Get returns a pointer to zeroed storage for one T. Allocation is
// infallible short of the underlying Go allocator failing, matching
// spec.md's "Failure mode" note.
func (p *Pool[T]) Get() *T {
	p.assertOwner()
	if len(p.free) == 0 {
		p.grow()
	}
	n := len(p.free) - 1
	node := p.free[n]
	p.free = p.free[:n]
	return node
}

// Put returns node to the free list for reuse. LIFO discipline means the
// most recently freed node is handed out first, favoring L1 residency
// exactly as spec.md section 4.2 prescribes.
func (p *Pool[T]) Put(node *T) {
	p.assertOwner()
	var zero T
	*node = zero
	p.free = append(p.free, node)
}

// Len reports the number of nodes currently on the free list (for tests).
func (p *Pool[T]) Len() int { return len(p.free) }

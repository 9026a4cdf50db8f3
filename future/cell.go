// File: future/cell.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// rawCell is the type-erased state cell backing every Promise/Future pair.
// Continuations accept arbitrary callables (spec.md section 9), so the
// cell stores the payload and the continuation as `any` / `func(any)`
// rather than as a generic field — the Go analogue of the boxed callable
// the design notes call for. Promise[T]/Future[T] restore type safety at
// the API boundary with a single type assertion.

package future

import (
	"sync"

	"github.com/coreshard/runtime/slab"
)

// Scheduler is the minimal capability a state cell needs from its owning
// shard: the ability to post a nullary task onto the in-shard pending
// queue. reactor.Reactor implements this.
type Scheduler interface {
	Schedule(task func())
}

// rawCell backs one Promise/Future pair and is allocated from a
// per-scheduler slab pool (spec.md section 4.3 "State cell").
type rawCell struct {
	RefCounted

	ready        bool
	value        any
	continuation func(any)
	owner        Scheduler
	pool         *slab.Pool[rawCell]
}

// AddRef is promoted from RefCounted. Release is overridden so that a
// cell whose count reaches zero is reset and returned to its pool instead
// of merely being forgotten — Go has no destructor to hook.
func (c *rawCell) Release() {
	if c.release() {
		c.ready = false
		c.value = nil
		c.continuation = nil
		owner := c.owner
		c.owner = nil
		pool := c.pool
		if pool != nil {
			pool.Put(c)
		}
		_ = owner
	}
}

// cellPools lazily creates one slab pool of rawCell per scheduler the
// first time a Promise is created on it. Keyed by the Scheduler interface
// value itself, which is comparable because every concrete Scheduler in
// this runtime (reactor.Reactor) is used by pointer.
// cellPoolsMu is a lock that is not confined to a single shard: it guards lazy, one-time pool creation, never the hot
// Get/Put path (slab.Pool itself asserts single-thread ownership once
// created). Cold path only — acceptable per spec.md section 5's ban on
// cross-shard locks on the hot path.
var (
	cellPoolsMu sync.Mutex
	cellPools   = map[Scheduler]*slab.Pool[rawCell]{}
)

func cellPoolFor(s Scheduler) *slab.Pool[rawCell] {
	cellPoolsMu.Lock()
	defer cellPoolsMu.Unlock()
	if p, ok := cellPools[s]; ok {
		return p
	}
	p := slab.NewPool[rawCell](0)
	cellPools[s] = p
	return p
}

func newCell(owner Scheduler) *rawCell {
	pool := cellPoolFor(owner)
	c := pool.Get()
	c.owner = owner
	c.pool = pool
	return c
}

// File: future/future.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package future

import "fmt"

// Unit stands in for void. Because Go generics unify the value and
// no-value cases for free, Promise[Unit]/Future[Unit] need no separate
// specialization the way Future.h requires one (spec.md section 4.3
// "Voidness").
type Unit struct{}

// Promise is the exclusive producer handle to one state cell.
type Promise[T any] struct {
	state     LocalPtr[*rawCell]
	retrieved bool
}

// NewPromise allocates a fresh state cell from sched's slab pool and
// returns the producer handle for it.
func NewPromise[T any](sched Scheduler) *Promise[T] {
	c := newCell(sched)
	return &Promise[T]{state: newLocalPtr[*rawCell](c)}
}

// GetFuture returns the paired consumer handle. Calling it twice on the
// same promise is a programming error (spec.md section 4.3).
func (p *Promise[T]) GetFuture() *Future[T] {
	if !p.state.Valid() {
		panic(ErrNoState)
	}
	if p.retrieved {
		panic(fmt.Errorf("%w", ErrFutureAlreadyRetrieved))
	}
	p.retrieved = true
	return &Future[T]{state: p.state.Clone()}
}

// SetValue transitions the cell to ready. If a continuation was already
// installed, it is not invoked inline: a nullary task is posted to the
// owning shard's pending queue, keeping the cell alive across the hop by
// cloning the LocalPtr into the closure (spec.md section 4.3).
func (p *Promise[T]) SetValue(v T) {
	c := p.state.Get()
	if c == nil {
		return
	}
	if c.ready {
		panic(fmt.Errorf("%w", ErrPromiseAlreadySatisfied))
	}
	c.value = v
	c.ready = true

	if c.continuation != nil {
		cont := c.continuation
		owner := c.owner
		captured := p.state.Clone()
		owner.Schedule(func() {
			cont(captured.Get().value)
			captured.Drop()
		})
	}
}

// Future is the exclusive consumer handle to one state cell.
type Future[T any] struct {
	state LocalPtr[*rawCell]
}

// Ready builds an already-resolved future with no backing scheduler.
// Because the cell is ready at construction, Then on it always resolves
// synchronously and never needs to schedule, so no owner is required —
// this is the Go analogue of Future<T>::make_ready (Future.h, carried
// forward per SPEC_FULL.md's supplemental-features section).
func Ready[T any](v T) *Future[T] {
	c := &rawCell{ready: true, value: v}
	return &Future[T]{state: newLocalPtr[*rawCell](c)}
}

// ReadyUnit is Ready[Unit]{} spelled out for callers that don't want to
// name the type parameter at the call site.
func ReadyUnit() *Future[Unit] { return Ready(Unit{}) }

func installContinuation(c *rawCell, task func(any)) {
	if c.continuation != nil {
		panic(fmt.Errorf("%w", ErrContinuationInstalled))
	}
	c.continuation = task
}

// Then is a package-level function, not a method, because Go forbids a
// method from introducing a new type parameter: f's result type U need
// not equal T. If the cell is already ready, fn runs synchronously on the
// caller's stack before Then returns (spec.md section 4.3, section 9
// "Prompt vs deferred resolution"); otherwise fn is wrapped into the
// cell's continuation and runs on the next drain of the owning shard's
// pending queue.
func Then[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	c := f.state.Get()
	if c == nil {
		panic(ErrNoState)
	}

	if c.ready && c.owner == nil {
		// A Ready future has no scheduler and never needs one: resolve
		// synchronously and hand back another ownerless Ready future.
		return Ready(fn(c.value.(T)))
	}

	next := NewPromise[U](c.owner)
	task := func(v any) {
		next.SetValue(fn(v.(T)))
	}

	if c.ready {
		task(c.value)
	} else {
		installContinuation(c, task)
	}
	return next.GetFuture()
}

// ThenFuture is the flattening variant of Then: fn returns another future
// instead of a plain value, and the result future resolves only once that
// inner future resolves (spec.md section 3 Future: "returns either a
// value or another future").
func ThenFuture[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	c := f.state.Get()
	if c == nil {
		panic(ErrNoState)
	}

	if c.ready && c.owner == nil {
		return fn(c.value.(T))
	}

	next := NewPromise[U](c.owner)
	nextFuture := next.GetFuture()

	task := func(v any) {
		inner := fn(v.(T))
		Then(inner, func(iv U) Unit {
			next.SetValue(iv)
			return Unit{}
		})
	}

	if c.ready {
		task(c.value)
	} else {
		installContinuation(c, task)
	}
	return nextFuture
}

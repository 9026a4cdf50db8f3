// File: future/refcount.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Intrusive, non-atomic reference counting. All manipulation of a given
// object's count happens on a single shard, so atomics would only add
// cost without buying correctness (spec.md section 4.1).

package future

// RefCounted is embedded by objects that participate in the continuation
// graph. It is deliberately not safe for concurrent use from more than
// one goroutine.
type RefCounted struct {
	refs uint32
}

// AddRef increments the count. Call once per LocalPtr that comes to hold
// the object.
func (r *RefCounted) AddRef() { r.refs++ }

// release decrements the count and reports whether it reached zero.
func (r *RefCounted) release() bool {
	r.refs--
	return r.refs == 0
}

// RefCount reports the current count, for tests and debugging.
func (r *RefCounted) RefCount() uint32 { return r.refs }

// Refable is implemented by any pointer type embedding RefCounted (or
// providing equivalent AddRef/Release semantics). comparable is embedded
// so LocalPtr[T] can compare a held pointer against its zero value without
// reflection.
type Refable interface {
	comparable
	AddRef()
	Release()
}

// LocalPtr is an owning handle around a Refable object: add on construction
// and on Clone, release on Drop. There is no implicit release on garbage
// collection — Go's GC will reclaim the slab-pool-backed memory only after
// every LocalPtr referencing it has been explicitly Dropped and the pool
// itself is discarded, exactly mirroring the C++ source's non-RAII-free
// discipline for pooled objects.
type LocalPtr[T Refable] struct {
	ptr T
}

// newLocalPtr wraps p, taking the first reference.
func newLocalPtr[T Refable](p T) LocalPtr[T] {
	var zero T
	if p != zero {
		p.AddRef()
	}
	return LocalPtr[T]{ptr: p}
}

// Get returns the underlying pointer without affecting the refcount.
func (l LocalPtr[T]) Get() T { return l.ptr }

// Valid reports whether the handle still refers to an object (i.e. has not
// been Taken or Dropped).
func (l LocalPtr[T]) Valid() bool {
	var zero T
	return l.ptr != zero
}

// Clone duplicates the handle, incrementing the refcount — the Go analogue
// of the copy constructor in IntrusivePtr.h.
func (l LocalPtr[T]) Clone() LocalPtr[T] {
	var zero T
	if l.ptr != zero {
		l.ptr.AddRef()
	}
	return LocalPtr[T]{ptr: l.ptr}
}

// Take moves the handle out, leaving the receiver empty without touching
// the refcount — the Go analogue of a move constructor.
func (l *LocalPtr[T]) Take() LocalPtr[T] {
	out := LocalPtr[T]{ptr: l.ptr}
	var zero T
	l.ptr = zero
	return out
}

// Drop releases the held reference, if any, and empties the handle.
func (l *LocalPtr[T]) Drop() {
	var zero T
	if l.ptr != zero {
		l.ptr.Release()
	}
	l.ptr = zero
}

// File: wire/packet.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package wire provides the Packet collaborator: a refcounted view over a
// contiguous byte buffer supporting zero-copy Share and sub-range Slice
// (spec.md section 6 "Packet collaborator contract"). Packet is the one
// object the core tolerates crossing shard boundaries, so unlike every
// refcount elsewhere in this runtime its count is atomic (spec.md
// sections 6 and 9).
package wire

import "sync/atomic"

type shared struct {
	data []byte
	refs atomic.Int32
}

// Packet is a cheap-to-copy handle; the zero value is an empty, unshared
// packet.
type Packet struct {
	s      *shared
	offset int
	length int
}

// New copies data into a freshly owned buffer with a refcount of one.
func New(data []byte) Packet {
	cp := append([]byte(nil), data...)
	s := &shared{data: cp}
	s.refs.Store(1)
	return Packet{s: s, length: len(cp)}
}

// FromString is New([]byte(str)), named to match Packet::from_string.
func FromString(str string) Packet { return New([]byte(str)) }

// Share returns a new Packet viewing the same storage and increments the
// shared refcount; it does not copy bytes.
func (p Packet) Share() Packet {
	if p.s != nil {
		p.s.refs.Add(1)
	}
	return p
}

// Slice returns a new Packet viewing [start, start+length) of p's current
// view, clamped to p's bounds, and increments the shared refcount. Start
// at or past the end yields an empty Packet with no storage reference.
func (p Packet) Slice(start, length int) Packet {
	if p.s == nil || start >= p.length {
		return Packet{}
	}
	if start+length > p.length {
		length = p.length - start
	}
	p.s.refs.Add(1)
	return Packet{s: p.s, offset: p.offset + start, length: length}
}

// DropFront is Slice(n, Size()-n).
func (p Packet) DropFront(n int) Packet {
	return p.Slice(n, p.length-n)
}

// Data returns the bytes currently in view. The slice aliases shared
// storage; callers must not retain it past Release.
func (p Packet) Data() []byte {
	if p.s == nil {
		return nil
	}
	return p.s.data[p.offset : p.offset+p.length]
}

// Size returns the number of bytes in view.
func (p Packet) Size() int { return p.length }

// Release drops one reference. The last Release frees the backing slice
// for garbage collection.
func (p Packet) Release() {
	if p.s == nil {
		return
	}
	if p.s.refs.Add(-1) == 0 {
		p.s.data = nil
	}
}

// UseCount reports the current shared refcount, for tests and debugging.
func (p Packet) UseCount() int32 {
	if p.s == nil {
		return 0
	}
	return p.s.refs.Load()
}

// File: shard/shard.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package shard owns the set of per-CPU reactors that make up one
// process: construction, CPU pinning, and cross-shard Post routing
// (spec.md section 1 "one reactor instance per CPU core" and section
// 4.5 "cross-core wake-up").
package shard

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/coreshard/runtime/reactor"
	"github.com/coreshard/runtime/rterr"
)

// Shard pairs one reactor with the OS thread pinned to run it.
type Shard struct {
	id  int
	cpu int
	r   *reactor.Reactor
}

// Set is the fixed collection of shards making up one process. Shards
// never move once created: id is both the shard's index in Set and its
// mailbox producer identity (spec.md section 9).
type Set struct {
	shards []*Shard
}

// New creates one shard per entry in cpus, each wired with a mailbox
// lane for every other shard in the set.
func New(cpus []int) (*Set, error) {
	s := &Set{shards: make([]*Shard, len(cpus))}
	for i, cpu := range cpus {
		r, err := reactor.New(cpu, len(cpus))
		if err != nil {
			return nil, rterr.Wrap(rterr.CodeSyscallFailed, "shard: reactor construction failed", err).WithContext("cpu", cpu)
		}
		s.shards[i] = &Shard{id: i, cpu: cpu, r: r}
	}
	return s, nil
}

// ID returns this shard's index within its Set.
func (sh *Shard) ID() int { return sh.id }

// Reactor returns the shard's event loop.
func (sh *Shard) Reactor() *reactor.Reactor { return sh.r }

// Pin locks the calling goroutine to its OS thread and restricts that
// thread's CPU affinity to the shard's assigned core. Must be called
// from the goroutine that will go on to call Run (spec.md section 1).
func (sh *Shard) Pin() error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(sh.cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return rterr.Wrap(rterr.CodeSyscallFailed, "shard: affinity pin failed", err).WithContext("cpu", sh.cpu)
	}
	return nil
}

// Run pins and runs this shard's reactor forever. Intended to be the
// body of the goroutine dedicated to this shard.
func (sh *Shard) Run() error {
	if err := sh.Pin(); err != nil {
		return err
	}
	return sh.r.Run()
}

// Shards exposes the underlying slice for range iteration.
func (s *Set) Shards() []*Shard { return s.shards }

// ByID returns the shard at index id, or nil if out of range.
func (s *Set) ByID(id int) *Shard {
	if id < 0 || id >= len(s.shards) {
		return nil
	}
	return s.shards[id]
}

// Post routes task from fromID's shard to toID's shard via the target
// reactor's mailbox (spec.md section 4.5). fromID identifies the
// producer lane; it must be the id of the shard the caller is currently
// running on.
func (s *Set) Post(fromID, toID int, task func()) error {
	to := s.ByID(toID)
	if to == nil {
		return rterr.New(rterr.CodeInvalidArgument, "shard: post to unknown shard").WithContext("shard_id", toID)
	}
	to.r.Post(fromID, task)
	return nil
}

// Close releases every shard's reactor resources. Not safe to call
// while any shard's Run is active.
func (s *Set) Close() error {
	var first error
	for _, sh := range s.shards {
		if err := sh.r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// File: mailbox/inbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resolves the Open Question spec.md section 9 leaves open: the original
// sketch shares one ring across every producer, which is an MPSC wearing
// an SPSC contract. This port picks option (a): one genuine SPSC lane per
// producer shard, dispatched by the poster's own shard id, so the SPSC
// invariant SpscQueue.h advertises actually holds.
package mailbox

import "runtime"

// Task is the unit of cross-shard work: a nullary closure run inline on
// the consumer shard (spec.md section 4.5).
type Task func()

const defaultLaneCapacity = 1024

// Inbox is one reactor's set of inbound lanes, one per possible producer
// shard (including itself, unused in practice since a shard never posts
// to its own mailbox — it uses the pending queue instead).
type Inbox struct {
	lanes []*SPSC[Task]
}

// NewInbox creates an inbox with numShards lanes, each of capacity
// laneCapacity (rounded up to a power of two). laneCapacity <= 0 uses the
// default of 1024.
func NewInbox(numShards, laneCapacity int) *Inbox {
	if laneCapacity <= 0 {
		laneCapacity = defaultLaneCapacity
	}
	lanes := make([]*SPSC[Task], numShards)
	for i := range lanes {
		lanes[i] = NewSPSC[Task](laneCapacity)
	}
	return &Inbox{lanes: lanes}
}

// Post pushes task onto the lane owned by producer shard srcShard,
// yield-spinning while the lane is full (spec.md section 4.5).
func (b *Inbox) Post(srcShard int, task Task) {
	lane := b.lanes[srcShard]
	for !lane.Push(task) {
		runtime.Gosched()
	}
}

// DrainAll pops and invokes every task currently queued on every lane,
// draining each lane to empty before moving to the next (spec.md section
// 4.5 "drain the mailbox by repeated pop until empty").
func (b *Inbox) DrainAll(handle func(Task)) {
	for _, lane := range b.lanes {
		for {
			t, ok := lane.Pop()
			if !ok {
				break
			}
			handle(t)
		}
	}
}

// File: timer/heap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package timer implements the monotonic min-heap of TimerTask entries
// that drives a reactor's single kernel timer descriptor (spec.md section
// 4.4). container/heap is the standard-library tool for exactly this job
// and no example in the retrieval pack ships a third-party heap, so this
// is the one place the runtime reaches for stdlib without a corpus
// alternative (see DESIGN.md).
package timer

import (
	"container/heap"
	"time"
)

// Task is one scheduled callback. Ties in Expire break in arbitrary
// (heap-internal) order, matching spec.md's "ties broken arbitrarily".
type Task struct {
	Expire   time.Time
	Callback func()
	ID       uint64

	index int
}

type taskHeap []*Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].Expire.Before(h[j].Expire) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Heap is a monotonic min-heap of pending TimerTasks.
type Heap struct {
	h      taskHeap
	nextID uint64
}

// NewHeap returns an empty heap.
func NewHeap() *Heap { return &Heap{} }

// Push schedules cb to run at expire and returns the task handle.
// Cancellation is not provided at this layer (spec.md section 5).
func (hp *Heap) Push(expire time.Time, cb func()) *Task {
	hp.nextID++
	t := &Task{Expire: expire, Callback: cb, ID: hp.nextID}
	heap.Push(&hp.h, t)
	return t
}

// Len reports the number of pending tasks.
func (hp *Heap) Len() int { return hp.h.Len() }

// Peek returns the earliest-expiring task without removing it.
func (hp *Heap) Peek() (*Task, bool) {
	if len(hp.h) == 0 {
		return nil, false
	}
	return hp.h[0], true
}

// Pop removes and returns the earliest-expiring task.
func (hp *Heap) Pop() *Task {
	return heap.Pop(&hp.h).(*Task)
}

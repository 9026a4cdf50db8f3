// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/coreshard/runtime/mailbox"
	"github.com/coreshard/runtime/rterr"
	"github.com/coreshard/runtime/timer"
)

// EventHandler receives the epoll event mask delivered for its fd. The
// mask distinguishes EPOLLIN from EPOLLOUT so one handler can multiplex
// both directions (spec.md section 3 "Handler registration").
type EventHandler func(mask uint32)

const maxBatchEvents = 128

// Reactor is a single shard's event loop. It is strictly confined to the
// OS thread that calls Run: Add, ModifyEvents, Remove, Schedule and RunAt
// all assert this, mirroring the C++ source's thread_local singleton
// without needing Go to expose true thread-local storage. ownerTID is
// zero until Run claims it, so registration calls made on the
// constructing goroutine before Run starts — the idiomatic
// build-then-`go sh.Run()` shard pattern — are not mistakenly checked
// against a thread Run never ends up using.
type Reactor struct {
	cpu      int
	ownerTID int

	epfd    int
	wakeFD  int
	timerFD int

	handlers map[int32]EventHandler
	pending  *queue.Queue

	timers *timer.Heap
	inbox  *mailbox.Inbox
}

// New creates a reactor pinned to cpu (for bookkeeping only — actual
// affinity pinning is the out-of-scope collaborator named in spec.md
// section 1, see shard.Shard.Pin) with one inbound mailbox lane per of
// numShards possible producers.
func New(cpu, numShards int) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "reactor: epoll_create1 failed", err).WithContext("cpu", cpu)
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "reactor: eventfd failed", err).WithContext("cpu", cpu)
	}

	timerFD, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		unix.Close(wakeFD)
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "reactor: timerfd_create failed", err).WithContext("cpu", cpu)
	}

	r := &Reactor{
		cpu:      cpu,
		epfd:     epfd,
		wakeFD:   wakeFD,
		timerFD:  timerFD,
		handlers: make(map[int32]EventHandler),
		pending:  queue.New(),
		timers:   timer.NewHeap(),
		inbox:    mailbox.NewInbox(numShards, 0),
	}

	// The internal fds stay level-triggered: they are never drained by a
	// user handler, only by the loop itself, which always reads exactly
	// the 8-byte counter each wake. ET would be equally correct here but
	// buys nothing since Run always empties the counter in one read.
	for _, fd := range [2]int{wakeFD, timerFD} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			r.Close()
			return nil, rterr.Wrap(rterr.CodeSyscallFailed, "reactor: internal fd registration failed", ErrReactorRegisterFailed).
				WithContext("fd", fd).WithContext("syscall_error", err)
		}
	}

	return r, nil
}

// CPU returns the CPU id this reactor was constructed for.
func (r *Reactor) CPU() int { return r.cpu }

// assertOwner is a no-op until Run has claimed ownerTID: before the loop
// starts there is no concurrent access to guard against, so registration
// performed on whatever goroutine called New is allowed through.
func (r *Reactor) assertOwner() {
	if r.ownerTID == 0 {
		return
	}
	if tid := unix.Gettid(); tid != r.ownerTID {
		panic(fmt.Sprintf("reactor: cross-thread use (owner tid=%d, caller tid=%d)", r.ownerTID, tid))
	}
}

// Schedule implements future.Scheduler: it appends task to the in-shard
// pending queue. Tasks posted in order A then B run in that order
// (spec.md section 5 "Pending-task FIFO order is observable").
func (r *Reactor) Schedule(task func()) {
	r.assertOwner()
	r.pending.Add(task)
}

// Add registers fd for mask, forcing edge-triggered mode. If fd is
// already registered, the call behaves as ModifyEvents and keeps the
// existing handler untouched only if h is nil; passing a non-nil h always
// replaces it (spec.md section 4.6 "Registration").
func (r *Reactor) Add(fd int, mask uint32, h EventHandler) error {
	r.assertOwner()
	ev := unix.EpollEvent{Events: mask | unix.EPOLLET, Fd: int32(fd)}

	_, exists := r.handlers[int32(fd)]
	if h != nil {
		r.handlers[int32(fd)] = h
	}

	op := unix.EPOLL_CTL_ADD
	if exists {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(r.epfd, op, fd, &ev); err != nil {
		if !exists {
			delete(r.handlers, int32(fd))
		}
		return rterr.Wrap(rterr.CodeSyscallFailed, "reactor: fd registration failed", ErrReactorRegisterFailed).
			WithContext("fd", fd).WithContext("syscall_error", err)
	}
	return nil
}

// ModifyEvents updates fd's interest mask in place, preserving the
// registered handler and the edge-triggered bit (spec.md section 4.6).
func (r *Reactor) ModifyEvents(fd int, mask uint32) error {
	r.assertOwner()
	ev := unix.EpollEvent{Events: mask | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return rterr.Wrap(rterr.CodeSyscallFailed, "reactor: modify fd failed", err).WithContext("fd", fd)
	}
	return nil
}

// Remove deletes fd from epoll and forgets its handler.
func (r *Reactor) Remove(fd int) {
	r.assertOwner()
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(r.handlers, int32(fd))
}

// RunAt schedules cb to fire at expire, re-arming the timer descriptor if
// expire becomes the new earliest deadline (spec.md section 4.4).
func (r *Reactor) RunAt(expire time.Time, cb func()) *timer.Task {
	r.assertOwner()
	wasEarliest := true
	if head, ok := r.timers.Peek(); ok {
		wasEarliest = expire.Before(head.Expire)
	}
	t := r.timers.Push(expire, cb)
	if wasEarliest {
		r.rearmTimer()
	}
	return t
}

// RunAfter is RunAt(time.Now().Add(d), cb).
func (r *Reactor) RunAfter(d time.Duration, cb func()) *timer.Task {
	return r.RunAt(time.Now().Add(d), cb)
}

func (r *Reactor) rearmTimer() {
	head, ok := r.timers.Peek()
	if !ok {
		return
	}
	diff := head.Expire.Sub(time.Now())
	if diff < 100*time.Nanosecond {
		diff = 100 * time.Nanosecond
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(diff.Nanoseconds())}
	_ = unix.TimerfdSettime(r.timerFD, 0, &spec, nil)
}

func (r *Reactor) handleTimerEvents() {
	var buf [8]byte
	_, _ = unix.Read(r.timerFD, buf[:])

	now := time.Now()
	for {
		head, ok := r.timers.Peek()
		if !ok || head.Expire.After(now) {
			break
		}
		t := r.timers.Pop()
		if t.Callback != nil {
			t.Callback()
		}
	}
	if r.timers.Len() > 0 {
		r.rearmTimer()
	}
}

// Post is the cross-shard entry point: a remote shard identified by
// srcShard enqueues task on the lane it owns and pings this reactor's
// eventfd (spec.md section 4.5). Safe to call concurrently from every
// other shard, each on its own lane.
func (r *Reactor) Post(srcShard int, task func()) {
	r.inbox.Post(srcShard, task)
	one := uint64(1)
	b := (*[8]byte)(unsafe.Pointer(&one))
	_, _ = unix.Write(r.wakeFD, b[:])
}

func (r *Reactor) handleWakeEvents() {
	var buf [8]byte
	_, _ = unix.Read(r.wakeFD, buf[:])
	r.inbox.DrainAll(func(t mailbox.Task) { t() })
}

func (r *Reactor) drainPending() {
	for r.pending.Length() > 0 {
		task := r.pending.Remove().(func())
		task()
	}
}

// Run executes the event loop forever: drain pending to a fixpoint, block
// in epoll_wait, dispatch each ready event, repeat (spec.md section 4.6).
// The calling goroutine becomes the reactor's owner thread for the
// remainder of its life — every Add/ModifyEvents/Remove/Schedule/RunAt
// call from here on is asserted against this thread, not whatever thread
// called New.
func (r *Reactor) Run() error {
	runtime.LockOSThread()
	r.ownerTID = unix.Gettid()
	events := make([]unix.EpollEvent, maxBatchEvents)

	for {
		r.drainPending()

		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return rterr.Wrap(rterr.CodeSyscallFailed, "reactor: epoll_wait failed", err)
		}

		for i := 0; i < n; i++ {
			fd := events[i].Fd
			mask := events[i].Events

			switch int(fd) {
			case r.wakeFD:
				r.handleWakeEvents()
			case r.timerFD:
				r.handleTimerEvents()
			default:
				if h, ok := r.handlers[fd]; ok {
					h(mask)
				}
			}
		}
	}
}

// Close releases the reactor's kernel descriptors. Not safe to call while
// Run is active.
func (r *Reactor) Close() error {
	_ = unix.Close(r.wakeFD)
	_ = unix.Close(r.timerFD)
	return unix.Close(r.epfd)
}

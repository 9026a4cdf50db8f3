// File: future/future_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package future_test

import (
	"testing"

	"github.com/coreshard/runtime/future"
)

// fakeScheduler records every scheduled task instead of running it
// inline, so tests can assert deferred-vs-prompt resolution precisely.
type fakeScheduler struct {
	tasks []func()
}

func (s *fakeScheduler) Schedule(task func()) { s.tasks = append(s.tasks, task) }

func (s *fakeScheduler) drain() {
	for len(s.tasks) > 0 {
		t := s.tasks[0]
		s.tasks = s.tasks[1:]
		t()
	}
}

func TestPromiseGetFutureTwiceHasPanicked(t *testing.T) {
	sched := &fakeScheduler{}
	p := future.NewPromise[int](sched)
	p.GetFuture()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on second GetFuture")
		}
	}()
	p.GetFuture()
}

func TestSetValueTwiceHasPanicked(t *testing.T) {
	sched := &fakeScheduler{}
	p := future.NewPromise[int](sched)
	p.GetFuture()
	p.SetValue(1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on second SetValue")
		}
	}()
	p.SetValue(2)
}

func TestThenPromptResolutionWhenValueSetBeforeThen(t *testing.T) {
	sched := &fakeScheduler{}
	p := future.NewPromise[int](sched)
	f := p.GetFuture()
	p.SetValue(21)

	var got int
	future.Then(f, func(v int) future.Unit {
		got = v * 2
		return future.Unit{}
	})

	if got != 42 {
		t.Fatalf("continuation did not run synchronously inside Then: got=%d, want 42", got)
	}
	if len(sched.tasks) != 0 {
		t.Fatalf("prompt resolution scheduled %d tasks, want 0", len(sched.tasks))
	}
}

func TestThenDeferredResolutionWhenThenBeforeValueSet(t *testing.T) {
	sched := &fakeScheduler{}
	p := future.NewPromise[int](sched)
	f := p.GetFuture()

	var got int
	future.Then(f, func(v int) future.Unit {
		got = v + 1
		return future.Unit{}
	})
	if got != 0 {
		t.Fatalf("continuation ran before SetValue: got=%d", got)
	}

	p.SetValue(9)
	if got != 0 {
		t.Fatalf("continuation ran inline from SetValue, want deferred via Schedule: got=%d", got)
	}
	sched.drain()
	if got != 10 {
		t.Fatalf("got=%d, want 10", got)
	}
}

func TestThenOnReadyFutureResolvesSynchronouslyWithoutAScheduler(t *testing.T) {
	f := future.Ready(5)
	got := future.Then(f, func(v int) int { return v * v })

	var out int
	future.Then(got, func(v int) future.Unit {
		out = v
		return future.Unit{}
	})
	if out != 25 {
		t.Fatalf("out=%d, want 25 (no scheduler should have been required)", out)
	}
}

func TestThenFutureFlattensNestedFuture(t *testing.T) {
	sched := &fakeScheduler{}
	p := future.NewPromise[int](sched)
	f := p.GetFuture()

	result := future.ThenFuture(f, func(v int) *future.Future[string] {
		inner := future.NewPromise[string](sched)
		inner.SetValue("answer")
		return inner.GetFuture()
	})

	var got string
	future.Then(result, func(v string) future.Unit {
		got = v
		return future.Unit{}
	})

	p.SetValue(1)
	sched.drain()
	if got != "answer" {
		t.Fatalf("got=%q, want %q", got, "answer")
	}
}

func TestInstallingTwoContinuationsHasPanicked(t *testing.T) {
	sched := &fakeScheduler{}
	p := future.NewPromise[int](sched)
	f := p.GetFuture()
	future.Then(f, func(v int) future.Unit { return future.Unit{} })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic installing a second continuation")
		}
	}()
	future.Then(f, func(v int) future.Unit { return future.Unit{} })
}

func TestFIFOOrderOfPendingTasksIsPreserved(t *testing.T) {
	sched := &fakeScheduler{}
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		p := future.NewPromise[int](sched)
		f := p.GetFuture()
		future.Then(f, func(v int) future.Unit {
			order = append(order, i)
			return future.Unit{}
		})
		p.SetValue(i)
	}

	sched.drain()
	for i, v := range order {
		if v != i {
			t.Fatalf("order=%v, want ascending 0..2", order)
		}
	}
}

func TestReadyUnitIsAlreadyResolved(t *testing.T) {
	f := future.ReadyUnit()
	ran := false
	future.Then(f, func(future.Unit) future.Unit {
		ran = true
		return future.Unit{}
	})
	if !ran {
		t.Fatal("ReadyUnit's continuation did not run synchronously")
	}
}

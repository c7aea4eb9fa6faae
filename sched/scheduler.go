package sched

import (
	"github.com/chazu/riptide/future"
)

// ---------------------------------------------------------------------------
// Scheduler: drives spawned tasks from one logical owner
// ---------------------------------------------------------------------------

// PollResult reports how far one scheduler pass got.
type PollResult uint8

const (
	// PollEmpty means there are no live tasks at all.
	PollEmpty PollResult = iota
	// PollPending means live tasks exist but none were ready.
	PollPending
	// PollPendingProgress means at least one task was polled before the
	// ready list ran dry.
	PollPendingProgress
	// PollShouldYield means the scheduler stopped early and has already
	// re-armed the driver's waker; control should return to the external
	// executor.
	PollShouldYield
)

// Scheduler owns the all-task list and the ready queue for one runtime.
//
// All methods except waker-driven enqueues are single-consumer: they must be
// called with the runtime lock held (or, in standalone use, from one
// dedicated goroutine).
type Scheduler struct {
	queue   *TaskQueue
	allHead *task
	allTail *task
	live    int

	// batch is the drained-but-not-yet-polled remainder of a ready list.
	batch *task

	// OnPanic, if set, receives values recovered from a panicking task poll.
	// When nil, panics are logged and otherwise contained.
	OnPanic func(recovered any)
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{queue: NewTaskQueue()}
}

// IsEmpty reports whether no tasks are live.
func (s *Scheduler) IsEmpty() bool {
	return s.allHead == nil
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	return s.live
}

// Spawn erases f into a task, links it into the all-task list and the ready
// queue, and returns its handle. The task is polled on the next scheduler
// pass.
func (s *Scheduler) Spawn(f future.Future) *Handle {
	t := &task{
		queue: s.queue,
		table: tableFor(f),
		data:  f,
	}
	t.queued.Store(true)
	// One reference each for the all-task list, the ready queue, and the
	// returned handle.
	t.refs.Store(3)

	s.pushAll(t)
	if !s.queue.push(t) {
		// Torn down: dispose immediately instead of queueing onto a dead
		// scheduler. The handle reports the task as finished.
		s.popAll(t)
		t.unref()
		return &Handle{t: t}
	}
	s.queue.notify.Wake()
	return &Handle{t: t}
}

// Poll drains ready tasks and polls each through its dispatch table until no
// ready work remains or the yield heuristic trips. The caller's waker is
// registered on the ready queue before draining, satisfying the liveness
// contract: any push after the drain re-wakes the caller.
func (s *Scheduler) Poll(cx *future.Context) PollResult {
	if s.allHead == nil {
		// Completed stragglers can still sit in the ready queue when a wake
		// raced their final poll; release those references now.
		s.releaseChain(s.batch)
		s.batch = nil
		s.releaseChain(s.queue.drain())
		return PollEmpty
	}
	s.queue.notify.Register(cx.Waker())

	iterations := 0
	yielded := 0

	for {
		t := s.nextReady()
		if t == nil {
			if iterations > 0 {
				return PollPendingProgress
			}
			return PollPending
		}

		if t.done.Load() {
			// Completed or torn down after a waker re-queued it.
			t.unref()
			continue
		}

		// Reset the enqueue gate before polling, so a wake during the poll
		// can re-queue the task.
		if !t.queued.Swap(false) {
			log.Errorf("task %s drained without its queued flag set", t.table.name)
		}

		if t.cancelled.Load() {
			s.popAll(t)
			t.unref()
			continue
		}

		iterations++
		res, panicValue, panicked := s.driveTask(t)
		switch {
		case panicked:
			s.popAll(t)
			t.unref()
			if s.OnPanic != nil {
				s.OnPanic(panicValue)
			} else {
				log.Errorf("task %s panicked: %v", t.table.name, panicValue)
			}
		case res == future.Ready:
			s.popAll(t)
			t.unref()
		default:
			// Pending: the task stays parked in the all-task list, owned by
			// whatever wakers its future registered.
			if t.queued.Load() {
				yielded++
			}
			t.unref()
			// Yield back to the external executor if tasks keep re-queueing
			// themselves immediately or a pass exceeded the live count, so
			// one busy runtime cannot starve its executor.
			if yielded > 2 || iterations > s.live {
				cx.Waker().WakeByRef()
				return PollShouldYield
			}
		}
	}
}

// Clear disposes every live task and seals the ready queue. Wakes arriving
// afterwards find the sealed queue and discard their references; no panic,
// no enqueue.
func (s *Scheduler) Clear() {
	for s.allHead != nil {
		s.popAll(s.allHead)
	}
	s.releaseChain(s.batch)
	s.batch = nil
	s.releaseChain(s.queue.seal())
	s.queue.notify.Drop()
}

// driveTask polls t's future once, containing panics.
func (s *Scheduler) driveTask(t *task) (res future.Poll, panicValue any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicValue = r
			panicked = true
		}
	}()
	// The popped queue reference backs the waker for the duration of the
	// poll; clones taken by the future add their own.
	cx := future.NewContext(taskWaker{t: t})
	res = t.table.drive(t.data, cx)
	return
}

func (s *Scheduler) nextReady() *task {
	if s.batch == nil {
		s.batch = s.queue.drain()
	}
	t := s.batch
	if t != nil {
		s.batch = t.next.Load()
		t.next.Store(nil)
	}
	return t
}

// pushAll links t into the all-task list, which owns one reference for as
// long as the task is live.
func (s *Scheduler) pushAll(t *task) {
	t.allPrev = s.allTail
	if s.allTail != nil {
		s.allTail.allNext = t
	} else {
		s.allHead = t
	}
	s.allTail = t
	s.live++
}

// popAll finalizes t: blocks further enqueues, disposes the future (once),
// unlinks the task from the all-task list and releases the list's reference.
func (s *Scheduler) popAll(t *task) {
	t.queued.Store(true)
	if !t.done.Swap(true) {
		t.table.drop(t.data)
	}

	if t.allPrev != nil {
		t.allPrev.allNext = t.allNext
	} else {
		s.allHead = t.allNext
	}
	if t.allNext != nil {
		t.allNext.allPrev = t.allPrev
	} else {
		s.allTail = t.allPrev
	}
	t.allNext = nil
	t.allPrev = nil
	s.live--

	t.unref()
}

func (s *Scheduler) releaseChain(t *task) {
	for t != nil {
		next := t.next.Load()
		t.next.Store(nil)
		if !t.done.Swap(true) {
			t.table.drop(t.data)
		}
		t.unref()
		t = next
	}
}

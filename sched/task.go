// Package sched implements the core asynchronous task machinery: a
// type-erased, reference-counted Task, a per-type dispatch table, a
// hand-built wake protocol, a multi-producer single-consumer ready queue,
// and the Scheduler that drives spawned futures to completion.
//
// The Scheduler itself is single-consumer: Spawn, Poll and Clear must only
// be called by the current logical owner (in riptide, the holder of the
// runtime lock). Wakers, by contrast, may fire from any goroutine.
package sched

import (
	"sync/atomic"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("riptide.sched")

// ---------------------------------------------------------------------------
// Task: type-erased, reference-counted unit of spawned work
// ---------------------------------------------------------------------------

// task is the heap representation of one spawned future.
//
// The reference count tracks the number of live owners: the scheduler's
// all-task list, the ready queue while the task is linked there, every live
// waker handle, and the spawn handle. The erased future is disposed exactly
// once (via the dispatch table) when the task completes, is cancelled, or
// the scheduler is torn down; the data pointer is released when the count
// reaches zero.
type task struct {
	// next links the task into the ready queue (multi-producer side) and,
	// transiently, into a drained batch (consumer side).
	next atomic.Pointer[task]

	// allNext/allPrev link the task into the scheduler's all-task list.
	// Consumer-owned; never touched by wakers.
	allNext *task
	allPrev *task

	// queue is the back-reference used by wakers to re-enqueue the task.
	// The queue does not own the task through this field; once the queue is
	// sealed, pushes fail and wakers discard their reference instead.
	queue *TaskQueue

	table *dispatchTable
	data  any

	refs      atomic.Int32
	queued    atomic.Bool
	cancelled atomic.Bool
	done      atomic.Bool
}

func (t *task) ref() {
	t.refs.Add(1)
}

func (t *task) unref() {
	n := t.refs.Add(-1)
	switch {
	case n == 0:
		// Last owner gone. The future was already disposed when done was
		// set; release the erased data so it cannot be reached again.
		t.data = nil
	case n < 0:
		panic("sched: task reference count underflow")
	}
}

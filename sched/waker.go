package sched

import (
	"github.com/chazu/riptide/future"
)

// ---------------------------------------------------------------------------
// WakeProtocol: reference-counted wake handles for tasks
// ---------------------------------------------------------------------------

// taskWaker is the waker handed to a task's future while it is being polled.
// Each handle represents one reference on the task; Clone increments the
// count and hands out a new logical owner, Drop releases one, Wake releases
// the handle as a side effect of waking.
//
// Safe to call from any goroutine.
type taskWaker struct {
	t *task
}

func (w taskWaker) Clone() future.Waker {
	w.t.ref()
	return w
}

func (w taskWaker) Drop() {
	w.t.unref()
}

// Wake marks the task ready and enqueues it, consuming the handle's
// reference. See wakeTask for the protocol.
func (w taskWaker) Wake() {
	wakeTask(w.t)
}

// WakeByRef wakes without consuming the handle: a fresh reference is taken
// for the enqueue attempt.
func (w taskWaker) WakeByRef() {
	w.t.ref()
	wakeTask(w.t)
}

// wakeTask attempts to move a task from parked to queued, consuming one
// reference on t.
//
// The queued flag's false→true transition is the single gate for enqueuing:
// concurrent wakes race on the flag, exactly one wins and pushes, the rest
// release their reference and return. If the ready queue has been sealed
// (scheduler torn down) the task is discarded instead of enqueued. On a
// successful push the consumed reference transfers to the queue, and the
// queue's own waker is fired so the driver is eventually re-polled.
func wakeTask(t *task) {
	if !t.queued.CompareAndSwap(false, true) {
		t.unref()
		return
	}
	q := t.queue
	if q == nil || !q.push(t) {
		t.unref()
		return
	}
	q.notify.Wake()
}

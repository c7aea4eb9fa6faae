package sched

import (
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Handle: the spawner's reference to a task
// ---------------------------------------------------------------------------

// Handle is returned by Spawn. It owns one reference on the task and must be
// finished with exactly one of Cancel or Detach; both are idempotent and
// safe to call from any goroutine.
type Handle struct {
	t        *task
	released atomic.Bool
}

// Cancel requests cancellation and releases the handle. If the task has not
// completed yet it is woken so the scheduler drains it, detects the
// cancellation and disposes the future state in place — on the scheduler's
// own thread, preserving the single-writer discipline.
func (h *Handle) Cancel() {
	if h.released.Swap(true) {
		return
	}
	t := h.t
	t.cancelled.Store(true)
	// Fresh reference for the enqueue attempt; discarded by the wake
	// protocol if the task is already queued or the queue is sealed.
	taskWaker{t: t}.WakeByRef()
	t.unref()
}

// Detach releases the handle without cancelling; the task runs to
// completion unobserved.
func (h *Handle) Detach() {
	if !h.released.Swap(true) {
		h.t.unref()
	}
}

// Finished reports whether the task has completed, been cancelled, or been
// torn down with its scheduler. Valid even after Cancel or Detach.
func (h *Handle) Finished() bool {
	return h.t.done.Load()
}

package runtime

import (
	"github.com/chazu/riptide/future"
	"github.com/chazu/riptide/sched"
	"github.com/chazu/riptide/trace"
)

// ---------------------------------------------------------------------------
// DriveFuture: the outer scheduling future
// ---------------------------------------------------------------------------

// DriveFuture makes a runtime progress each time it is polled by an
// external executor: it acquires the runtime lock, refreshes the engine's
// stack marker, then alternately drains the engine's internal job queue and
// the spawned-task scheduler until neither yields progress.
//
// It resolves only once its runtime has been closed; while the runtime is
// alive every poll returns Pending with a wake source registered (the cell
// on contention, the spawn listener and ready queue otherwise).
type DriveFuture struct {
	weak WeakRuntime
}

// Poll implements future.Future.
func (d *DriveFuture) Poll(cx *future.Context) future.Poll {
	rt, ok := d.weak.TryRef()
	if !ok {
		return future.Ready
	}

	// Yield the engine to whichever other logical owner currently holds it;
	// the cell wakes us on release.
	g, ok := rt.inner.PollLock(cx.Waker())
	if !ok {
		return future.Pending
	}
	defer g.Unlock()

	if !rt.alive.Load() {
		// Closed between the upgrade and the lock.
		return future.Ready
	}

	in := g.Value()
	// Control may have migrated goroutines between polls.
	in.Engine.UpdateStackTop()
	in.spawner.Listen(cx.Waker())

	jobs := 0
	defer func() {
		rt.record(trace.Event{Kind: trace.EventDriverPass, Jobs: jobs, Tasks: in.spawner.Len()})
		in.spawner.NotifyIfIdle(in.Engine.PendingJobs())
	}()

	for {
		ran, err := in.Engine.ExecutePendingJob()
		if err != nil {
			// Contained job failure: surfaced through the engine's
			// rejection machinery, never through the driver.
			in.Engine.Throw(err)
		}
		if ran {
			jobs++
			continue
		}

		switch in.spawner.Drive(cx) {
		case sched.PollPendingProgress:
			// Tasks ran and may have enqueued jobs; go around again.
			continue
		case sched.PollShouldYield, sched.PollPending:
			// Drain any jobs the last task batch produced before parking,
			// so engine futures cannot deadlock against their reactions.
			for {
				ran, err := in.Engine.ExecutePendingJob()
				if err != nil {
					in.Engine.Throw(err)
				}
				if !ran {
					break
				}
				jobs++
			}
			return future.Pending
		default: // sched.PollEmpty
			return future.Pending
		}
	}
}

// ---------------------------------------------------------------------------
// IdleFuture
// ---------------------------------------------------------------------------

// IdleFuture resolves once the runtime has no pending internal jobs and no
// live spawned tasks, or has been closed.
type IdleFuture struct {
	weak WeakRuntime
}

// Poll implements future.Future.
func (f *IdleFuture) Poll(cx *future.Context) future.Poll {
	rt, ok := f.weak.TryRef()
	if !ok {
		return future.Ready
	}
	g, ok := rt.inner.PollLock(cx.Waker())
	if !ok {
		return future.Pending
	}
	defer g.Unlock()

	in := g.Value()
	if !rt.alive.Load() || (in.Engine.PendingJobs() == 0 && in.spawner.IsEmpty()) {
		return future.Ready
	}
	in.spawner.ListenIdle(cx.Waker())
	return future.Pending
}

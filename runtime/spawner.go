package runtime

import (
	"github.com/chazu/riptide/future"
	"github.com/chazu/riptide/sched"
)

// ---------------------------------------------------------------------------
// Spawner: scheduler ownership plus driver/idle notification
// ---------------------------------------------------------------------------

// Spawner owns the runtime's scheduler and the waker lists that connect it
// back to whoever is driving: the drive listeners are woken on every spawn
// (new work exists), the idle listeners once nothing is left running.
//
// All methods require the runtime lock.
type Spawner struct {
	sched  *sched.Scheduler
	wakeup []future.Waker
	idle   []future.Waker
}

func newSpawner() *Spawner {
	return &Spawner{sched: sched.New()}
}

// Spawn pushes f onto the scheduler and wakes all drive listeners.
func (s *Spawner) Spawn(f future.Future) *sched.Handle {
	s.wakeAll()
	return s.sched.Spawn(f)
}

// Listen registers w (cloned) to be woken when new work is spawned or the
// spawner is torn down.
func (s *Spawner) Listen(w future.Waker) {
	s.wakeup = append(s.wakeup, w.Clone())
}

// ListenIdle registers w (cloned) to be woken when the spawner may have
// become idle.
func (s *Spawner) ListenIdle(w future.Waker) {
	s.idle = append(s.idle, w.Clone())
}

// IsEmpty reports whether no spawned tasks are live.
func (s *Spawner) IsEmpty() bool {
	return s.sched.IsEmpty()
}

// Len returns the number of live spawned tasks.
func (s *Spawner) Len() int {
	return s.sched.Len()
}

// Drive runs one scheduler pass on behalf of the driver.
func (s *Spawner) Drive(cx *future.Context) sched.PollResult {
	return s.sched.Poll(cx)
}

// NotifyIfIdle wakes idle listeners when no tasks remain and the engine
// reports no pending jobs. Called by the driver at the end of each pass.
func (s *Spawner) NotifyIfIdle(pendingJobs int) {
	if pendingJobs != 0 || !s.sched.IsEmpty() {
		return
	}
	ws := s.idle
	s.idle = nil
	for _, w := range ws {
		w.Wake()
	}
}

// Clear tears down every live task and wakes all listeners so parked
// drivers and idle waiters re-poll and observe the shutdown.
func (s *Spawner) Clear() {
	s.sched.Clear()
	s.wakeAll()
	ws := s.idle
	s.idle = nil
	for _, w := range ws {
		w.Wake()
	}
}

func (s *Spawner) wakeAll() {
	ws := s.wakeup
	s.wakeup = nil
	for _, w := range ws {
		w.Wake()
	}
}

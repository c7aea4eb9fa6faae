package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// RegistrySweeper: periodic reclamation of settled registry entries
// ---------------------------------------------------------------------------

// SweepStats holds statistics from a single sweep.
type SweepStats struct {
	Promises      int
	SweepDuration time.Duration
	Timestamp     time.Time
}

// RegistrySweeper periodically reclaims registry entries for settled
// promises so long-running embedders (servers, REPLs) do not accumulate
// bookkeeping for values the program has long since consumed.
type RegistrySweeper struct {
	e        *Engine
	interval time.Duration
	stop     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex // protects start/stop lifecycle

	sweepCount atomic.Uint64
	lastStats  atomic.Value // *SweepStats
}

// DefaultSweepInterval is the default interval between registry sweeps.
const DefaultSweepInterval = 30 * time.Second

// NewRegistrySweeper creates a sweeper for e with the given interval;
// non-positive intervals fall back to DefaultSweepInterval.
func NewRegistrySweeper(e *Engine, interval time.Duration) *RegistrySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &RegistrySweeper{e: e, interval: interval}
}

// Start begins the periodic sweep goroutine. Safe to call multiple times;
// only one sweep loop runs.
func (s *RegistrySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.loop(s.stop, s.stopped)
}

// Stop halts the sweep loop and waits for it to exit.
func (s *RegistrySweeper) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop = nil
	s.stopped = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
		<-stopped
	}
}

// SweepNow performs one sweep synchronously and returns its stats.
func (s *RegistrySweeper) SweepNow() SweepStats {
	start := time.Now()
	stats := SweepStats{
		Promises:  s.e.promises.sweep(),
		Timestamp: start,
	}
	stats.SweepDuration = time.Since(start)
	s.sweepCount.Add(1)
	s.lastStats.Store(&stats)
	if stats.Promises > 0 {
		log.Debugf("registry sweep reclaimed %d promises in %s", stats.Promises, stats.SweepDuration)
	}
	return stats
}

// SweepCount returns the number of sweeps performed.
func (s *RegistrySweeper) SweepCount() uint64 {
	return s.sweepCount.Load()
}

// LastStats returns the stats of the most recent sweep, or nil.
func (s *RegistrySweeper) LastStats() *SweepStats {
	v, _ := s.lastStats.Load().(*SweepStats)
	return v
}

func (s *RegistrySweeper) loop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.SweepNow()
		case <-stop:
			return
		}
	}
}

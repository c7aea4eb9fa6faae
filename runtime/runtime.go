// Package runtime ties the riptide pieces together: a Runtime owns one
// embedded engine behind a cell lock, accepts spawned host futures, and
// hands out the DriveFuture that an external executor polls to make both
// the engine's internal jobs and the spawned tasks progress.
package runtime

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/riptide/cell"
	"github.com/chazu/riptide/engine"
	"github.com/chazu/riptide/future"
	"github.com/chazu/riptide/sched"
	"github.com/chazu/riptide/trace"
)

var log = commonlog.GetLogger("riptide.runtime")

// ErrClosed is returned when operating on a closed runtime.
var ErrClosed = errors.New("runtime: closed")

// Inner is the state guarded by the runtime lock. No engine or spawner
// operation may happen without holding it.
type Inner struct {
	Engine  *engine.Engine
	spawner *Spawner
}

// Runtime is a handle on one embedded engine plus its task scheduler.
// Handles are cheap to copy; all copies refer to the same runtime.
type Runtime struct {
	inner *cell.Cell[Inner]
	alive *atomic.Bool
	rec   *atomic.Pointer[trace.Recorder]
}

// New creates a live runtime around a fresh engine.
func New() *Runtime {
	eng := engine.New()
	sp := newSpawner()
	rt := &Runtime{
		inner: cell.New(Inner{Engine: eng, spawner: sp}),
		alive: &atomic.Bool{},
		rec:   &atomic.Pointer[trace.Recorder]{},
	}
	rt.alive.Store(true)
	// Task panics surface as engine exceptions, never as unwinds through
	// the driver.
	sp.sched.OnPanic = func(r any) {
		rt.record(trace.Event{Kind: trace.EventTaskPanic, Detail: trace.Describe(r)})
		eng.Throw(r)
	}
	return rt
}

// Weak returns a weak handle that does not keep the runtime usable after
// Close.
func (r *Runtime) Weak() WeakRuntime {
	return WeakRuntime{inner: r.inner, alive: r.alive, rec: r.rec}
}

// IsAlive reports whether Close has not been called. Safe without the lock.
func (r *Runtime) IsAlive() bool {
	return r.alive.Load()
}

// Spawn enqueues f as a new asynchronous unit of work owned by this
// runtime. The task is polled on the next driver pass. It fails fast with
// ErrClosed on a dead runtime.
func (r *Runtime) Spawn(f future.Future) (*sched.Handle, error) {
	g := r.inner.Lock()
	defer g.Unlock()
	return r.spawnLocked(g, f)
}

// SpawnCtx is Spawn with a context bounding the lock acquisition.
func (r *Runtime) SpawnCtx(ctx context.Context, f future.Future) (*sched.Handle, error) {
	g, err := r.inner.LockCtx(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Unlock()
	return r.spawnLocked(g, f)
}

func (r *Runtime) spawnLocked(g *cell.Guard[Inner], f future.Future) (*sched.Handle, error) {
	if !r.alive.Load() {
		return nil, ErrClosed
	}
	r.record(trace.Event{Kind: trace.EventSpawn, Detail: trace.Describe(f)})
	return g.Value().spawner.Spawn(f), nil
}

// Drive constructs the outer scheduling future for this runtime. At most
// one live driver should exist per runtime.
func (r *Runtime) Drive() *DriveFuture {
	return &DriveFuture{weak: r.Weak()}
}

// Idle returns a future that completes once the runtime has no pending
// internal jobs and no live spawned tasks (or has been closed).
func (r *Runtime) Idle() *IdleFuture {
	return &IdleFuture{weak: r.Weak()}
}

// Close tears the runtime down: the engine is closed, every live task is
// disposed, and parked drivers resolve on their next poll. Spawns after
// Close fail fast. Idempotent.
func (r *Runtime) Close() {
	g := r.inner.Lock()
	defer g.Unlock()
	if !r.alive.Swap(false) {
		return
	}
	in := g.Value()
	r.record(trace.Event{Kind: trace.EventClose})
	in.spawner.Clear()
	in.Engine.Close()
	log.Info("runtime closed")
}

// Lock acquires the runtime lock, blocking until available.
func (r *Runtime) Lock() *cell.Guard[Inner] {
	return r.inner.Lock()
}

// TryLock acquires the runtime lock only if immediately available.
func (r *Runtime) TryLock() (*cell.Guard[Inner], bool) {
	return r.inner.TryLock()
}

// LockCtx acquires the runtime lock, suspending on ctx rather than
// blocking indefinitely.
func (r *Runtime) LockCtx(ctx context.Context) (*cell.Guard[Inner], error) {
	return r.inner.LockCtx(ctx)
}

// SetRecorder installs a trace recorder (nil disables tracing).
func (r *Runtime) SetRecorder(rec *trace.Recorder) {
	r.rec.Store(rec)
}

func (r *Runtime) record(ev trace.Event) {
	if rec := r.rec.Load(); rec != nil {
		rec.Record(ev)
	}
}

// ---------------------------------------------------------------------------
// WeakRuntime
// ---------------------------------------------------------------------------

// WeakRuntime references a runtime without extending its usable lifetime.
type WeakRuntime struct {
	inner *cell.Cell[Inner]
	alive *atomic.Bool
	rec   *atomic.Pointer[trace.Recorder]
}

// TryRef upgrades to a strong handle, reporting false once the runtime has
// been closed.
func (w WeakRuntime) TryRef() (*Runtime, bool) {
	if w.inner == nil || !w.alive.Load() {
		return nil, false
	}
	return &Runtime{inner: w.inner, alive: w.alive, rec: w.rec}, true
}

package runtime

import (
	"context"
	"fmt"

	"github.com/chazu/riptide/engine"
)

// ---------------------------------------------------------------------------
// Do: synchronous host access to the engine
// ---------------------------------------------------------------------------

// Do runs fn with the runtime lock held, serializing it against the driver
// and every other host caller. The engine is single-threaded; all host-side
// access must go through the lock to avoid data races. A panic inside fn is
// recovered and returned as an error rather than poisoning the lock.
func (r *Runtime) Do(fn func(e *engine.Engine) error) error {
	g := r.inner.Lock()
	defer g.Unlock()
	return r.doLocked(g.Value(), fn)
}

// DoCtx is Do with a context bounding the lock acquisition.
func (r *Runtime) DoCtx(ctx context.Context, fn func(e *engine.Engine) error) error {
	g, err := r.inner.LockCtx(ctx)
	if err != nil {
		return err
	}
	defer g.Unlock()
	return r.doLocked(g.Value(), fn)
}

// TryDo runs fn only if the lock is immediately available, reporting
// whether it ran.
func (r *Runtime) TryDo(fn func(e *engine.Engine) error) (bool, error) {
	g, ok := r.inner.TryLock()
	if !ok {
		return false, nil
	}
	defer g.Unlock()
	return true, r.doLocked(g.Value(), fn)
}

func (r *Runtime) doLocked(in *Inner, fn func(e *engine.Engine) error) (err error) {
	if !r.alive.Load() {
		return ErrClosed
	}
	in.Engine.UpdateStackTop()
	// Host work can leave internal jobs queued (resolving a promise, for
	// one); nudge any parked driver so they run.
	defer func() {
		if in.Engine.PendingJobs() > 0 {
			in.spawner.wakeAll()
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("runtime: recovered: %w", engine.ToException(rec))
		}
	}()
	return fn(in.Engine)
}

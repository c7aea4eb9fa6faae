package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chazu/riptide/engine"
	"github.com/chazu/riptide/future"
	"github.com/chazu/riptide/trace"
)

func startDriver(t *testing.T, rt *Runtime) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := future.Block(ctx, rt.Drive()); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("driver: %v", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// neverFuture stays pending forever and reports its disposal.
type neverFuture struct {
	disposed chan struct{}
}

func (f *neverFuture) Poll(*future.Context) future.Poll { return future.Pending }
func (f *neverFuture) Dispose()                         { close(f.disposed) }

func TestTaskLifecycles(t *testing.T) {
	rt := New()
	defer rt.Close()
	stop := startDriver(t, rt)
	defer stop()

	// A completes on its first poll.
	aDone := make(chan struct{})
	hA, err := rt.Spawn(future.Done(func() { close(aDone) }))
	if err != nil {
		t.Fatal(err)
	}
	hA.Detach()

	// B parks on a timer and is woken from another goroutine.
	bDone := make(chan struct{})
	sleep := future.Sleep(10 * time.Millisecond)
	hB, err := rt.Spawn(future.Func(func(cx *future.Context) future.Poll {
		if sleep.Poll(cx) == future.Pending {
			return future.Pending
		}
		close(bDone)
		return future.Ready
	}))
	if err != nil {
		t.Fatal(err)
	}
	hB.Detach()

	// C never completes and is cancelled by the host.
	c := &neverFuture{disposed: make(chan struct{})}
	hC, err := rt.Spawn(c)
	if err != nil {
		t.Fatal(err)
	}

	waitClosed(t, aDone, "task A")
	waitClosed(t, bDone, "task B")

	hC.Cancel()
	waitClosed(t, c.disposed, "task C disposal")

	if err := future.Block(context.Background(), rt.Idle()); err != nil {
		t.Fatal(err)
	}
	if !hC.Finished() {
		t.Error("cancelled task should report finished")
	}
}

func TestIdleOnFreshRuntime(t *testing.T) {
	rt := New()
	defer rt.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := future.Block(ctx, rt.Idle()); err != nil {
		t.Fatalf("idle runtime should resolve immediately: %v", err)
	}
}

func TestSpawnAfterCloseFails(t *testing.T) {
	rt := New()
	rt.Close()
	if _, err := rt.Spawn(future.Done(nil)); err != ErrClosed {
		t.Errorf("Spawn after close = %v, want ErrClosed", err)
	}
	if err := rt.Do(func(*engine.Engine) error { return nil }); err != ErrClosed {
		t.Errorf("Do after close = %v, want ErrClosed", err)
	}
	rt.Close() // idempotent
}

func TestCloseResolvesParkedDriver(t *testing.T) {
	rt := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := future.Block(context.Background(), rt.Drive()); err != nil {
			t.Errorf("driver: %v", err)
		}
	}()

	// Give the driver a chance to park, then tear down.
	time.Sleep(10 * time.Millisecond)
	rt.Close()
	waitClosed(t, done, "driver resolution")
}

func TestCloseDisposesLiveTasks(t *testing.T) {
	rt := New()
	stop := startDriver(t, rt)
	defer stop()

	c := &neverFuture{disposed: make(chan struct{})}
	h, err := rt.Spawn(c)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Detach()

	rt.Close()
	waitClosed(t, c.disposed, "task disposal on close")
	if rt.IsAlive() {
		t.Error("closed runtime reports alive")
	}
}

func TestDoSerializesHostAccess(t *testing.T) {
	rt := New()
	defer rt.Close()
	stop := startDriver(t, rt)
	defer stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := rt.Do(func(*engine.Engine) error {
					counter++
					return nil
				}); err != nil {
					t.Errorf("Do: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if counter != 800 {
		t.Errorf("counter = %d, want 800", counter)
	}
}

func TestDoRecoversPanic(t *testing.T) {
	rt := New()
	defer rt.Close()

	err := rt.Do(func(*engine.Engine) error { panic("host callback exploded") })
	if err == nil {
		t.Fatal("panic was not surfaced as an error")
	}
	var x *engine.Exception
	if !errors.As(err, &x) || x.Value != "host callback exploded" {
		t.Errorf("err = %v, want wrapped exception", err)
	}

	// The lock was released despite the panic.
	if err := rt.Do(func(*engine.Engine) error { return nil }); err != nil {
		t.Errorf("Do after recovered panic: %v", err)
	}
}

func TestTryDoContention(t *testing.T) {
	rt := New()
	defer rt.Close()

	g := rt.Lock()
	ran, _ := rt.TryDo(func(*engine.Engine) error { return nil })
	if ran {
		t.Error("TryDo ran under a held lock")
	}
	g.Unlock()

	ran, err := rt.TryDo(func(*engine.Engine) error { return nil })
	if !ran || err != nil {
		t.Errorf("TryDo = (%v, %v), want (true, nil)", ran, err)
	}
}

func TestTasksAndJobsInterleave(t *testing.T) {
	rt := New()
	defer rt.Close()
	stop := startDriver(t, rt)
	defer stop()

	// Stash the engine pointer; inside a task poll the runtime lock is held,
	// so calling engine methods directly is legal there.
	var eng *engine.Engine
	if err := rt.Do(func(e *engine.Engine) error {
		eng = e
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	jobRan := make(chan struct{})
	h, err := rt.Spawn(future.Done(func() {
		eng.EnqueueJob(func(*engine.Engine) error {
			close(jobRan)
			return nil
		})
	}))
	if err != nil {
		t.Fatal(err)
	}
	h.Detach()

	// The job enqueued by the task runs in the same driver pass, before the
	// driver parks.
	waitClosed(t, jobRan, "task-enqueued job")
	if err := future.Block(context.Background(), rt.Idle()); err != nil {
		t.Fatal(err)
	}
}

func TestPromiseTaskResolvedByHost(t *testing.T) {
	rt := New()
	defer rt.Close()
	stop := startDriver(t, rt)
	defer stop()

	var p *engine.Promise
	var resolve func(any)
	if err := rt.Do(func(e *engine.Engine) error {
		p, resolve, _ = e.NewPromise()
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	settled := make(chan struct{})
	await := p.Await()
	h, err := rt.Spawn(future.Func(func(cx *future.Context) future.Poll {
		if await.Poll(cx) == future.Pending {
			return future.Pending
		}
		close(settled)
		return future.Ready
	}))
	if err != nil {
		t.Fatal(err)
	}
	h.Detach()

	go func() {
		time.Sleep(10 * time.Millisecond)
		rt.Do(func(*engine.Engine) error {
			resolve("from the host")
			return nil
		})
	}()

	waitClosed(t, settled, "promise settlement")
	if p.Result() != "from the host" {
		t.Errorf("Result = %v", p.Result())
	}
}

func TestTaskPanicSurfacesViaTracker(t *testing.T) {
	rt := New()
	defer rt.Close()

	tracked := make(chan any, 1)
	if err := rt.Do(func(e *engine.Engine) error {
		e.SetRejectionTracker(func(_ *engine.Promise, reason any) {
			select {
			case tracked <- reason:
			default:
			}
		})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	stop := startDriver(t, rt)
	defer stop()

	h, err := rt.Spawn(future.Func(func(*future.Context) future.Poll {
		panic("task exploded")
	}))
	if err != nil {
		t.Fatal(err)
	}
	h.Detach()

	select {
	case reason := <-tracked:
		if reason != "task exploded" {
			t.Errorf("reason = %v", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panic never reached the rejection tracker")
	}
}

func TestRecorderObservesLifecycle(t *testing.T) {
	rt := New()
	rec := trace.NewRecorder(64)
	rt.SetRecorder(rec)

	stop := startDriver(t, rt)
	h, err := rt.Spawn(future.Done(nil))
	if err != nil {
		t.Fatal(err)
	}
	h.Detach()
	if err := future.Block(context.Background(), rt.Idle()); err != nil {
		t.Fatal(err)
	}
	stop()
	rt.Close()

	var spawns, passes, closes int
	for _, ev := range rec.Events() {
		switch ev.Kind {
		case trace.EventSpawn:
			spawns++
		case trace.EventDriverPass:
			passes++
		case trace.EventClose:
			closes++
		}
	}
	if spawns != 1 || closes != 1 || passes == 0 {
		t.Errorf("spawns=%d passes=%d closes=%d, want 1/>0/1", spawns, passes, closes)
	}
}

func TestSpawnCtxRespectsContext(t *testing.T) {
	rt := New()
	defer rt.Close()

	g := rt.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := rt.SpawnCtx(ctx, future.Done(nil)); err != context.DeadlineExceeded {
		t.Errorf("SpawnCtx = %v, want DeadlineExceeded", err)
	}
	g.Unlock()
}

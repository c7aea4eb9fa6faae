package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chazu/riptide/future"
	"github.com/petermattis/goid"
)

func drainJobs(t *testing.T, e *Engine) {
	t.Helper()
	for {
		ran, err := e.ExecutePendingJob()
		if err != nil {
			t.Fatalf("job error: %v", err)
		}
		if !ran {
			return
		}
	}
}

func TestJobOrder(t *testing.T) {
	e := New()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		if err := e.EnqueueJob(func(*Engine) error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	drainJobs(t, e)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
	if e.JobsRun() != 3 {
		t.Errorf("JobsRun = %d, want 3", e.JobsRun())
	}
}

func TestExecutePendingJobRunsOne(t *testing.T) {
	e := New()
	e.EnqueueJob(func(*Engine) error { return nil })
	e.EnqueueJob(func(*Engine) error { return nil })

	ran, err := e.ExecutePendingJob()
	if !ran || err != nil {
		t.Fatalf("ExecutePendingJob = (%v, %v)", ran, err)
	}
	if e.PendingJobs() != 1 {
		t.Errorf("PendingJobs = %d, want 1 (one job per call)", e.PendingJobs())
	}
}

func TestJobPanicContained(t *testing.T) {
	e := New()
	e.EnqueueJob(func(*Engine) error { panic("job exploded") })

	ran, err := e.ExecutePendingJob()
	if !ran {
		t.Fatal("panicking job did not count as run")
	}
	var x *Exception
	if !errors.As(err, &x) || x.Value != "job exploded" {
		t.Errorf("err = %v, want exception wrapping the panic value", err)
	}
}

func TestCloseDiscardsJobs(t *testing.T) {
	e := New()
	e.EnqueueJob(func(*Engine) error {
		t.Error("discarded job ran")
		return nil
	})
	e.Close()

	if e.IsAlive() {
		t.Error("closed engine reports alive")
	}
	if ran, _ := e.ExecutePendingJob(); ran {
		t.Error("closed engine ran a job")
	}
	if err := e.EnqueueJob(func(*Engine) error { return nil }); err != ErrClosed {
		t.Errorf("EnqueueJob after close = %v, want ErrClosed", err)
	}
	e.Close() // idempotent
}

func TestInterruptHandler(t *testing.T) {
	e := New()
	e.EnqueueJob(func(*Engine) error { return nil })
	e.SetInterruptHandler(func() bool { return true })

	ran, err := e.ExecutePendingJob()
	if ran {
		t.Error("interrupted drain still ran a job")
	}
	var x *Exception
	if !errors.As(err, &x) {
		t.Errorf("err = %v, want interrupt exception", err)
	}

	e.SetInterruptHandler(nil)
	drainJobs(t, e)
}

func TestPromiseReactionsRunAsJobs(t *testing.T) {
	e := New()
	p, resolve, _ := e.NewPromise()

	var got any
	p.Then(Reaction{OnFulfilled: func(_ *Engine, v any) { got = v }})

	resolve("value")
	if got != nil {
		t.Fatal("reaction ran inline; it must be deferred to the job queue")
	}
	if p.State() != PromiseFulfilled || p.Result() != "value" {
		t.Fatalf("state = %v result = %v", p.State(), p.Result())
	}

	drainJobs(t, e)
	if got != "value" {
		t.Errorf("reaction got %v, want value", got)
	}
}

func TestPromiseThenAfterSettle(t *testing.T) {
	e := New()
	p, _, reject := e.NewPromise()
	reject("boom")

	var got any
	p.Then(Reaction{OnRejected: func(_ *Engine, v any) { got = v }})
	drainJobs(t, e)
	if got != "boom" {
		t.Errorf("late reaction got %v, want boom", got)
	}
}

func TestPromiseSettleOnce(t *testing.T) {
	e := New()
	p, resolve, reject := e.NewPromise()
	resolve(1)
	reject(2)
	resolve(3)
	if p.State() != PromiseFulfilled || p.Result() != 1 {
		t.Errorf("state = %v result = %v, want fulfilled 1", p.State(), p.Result())
	}
}

func TestRejectionTracker(t *testing.T) {
	e := New()
	var tracked atomic.Int32
	e.SetRejectionTracker(func(p *Promise, reason any) {
		if reason != "unhandled" {
			t.Errorf("reason = %v", reason)
		}
		tracked.Add(1)
	})

	_, _, reject := e.NewPromise()
	reject("unhandled")
	if tracked.Load() != 1 {
		t.Errorf("tracked = %d, want 1", tracked.Load())
	}

	// A promise with a registered reaction is handled and not reported.
	p2, _, reject2 := e.NewPromise()
	p2.Then(Reaction{OnRejected: func(*Engine, any) {}})
	reject2("handled")
	if tracked.Load() != 1 {
		t.Errorf("tracked = %d after handled rejection, want still 1", tracked.Load())
	}
	drainJobs(t, e)
}

func TestPromiseFuture(t *testing.T) {
	e := New()
	p, resolve, _ := e.NewPromise()
	f := p.Await()

	w := &stubWaker{}
	if f.Poll(future.NewContext(w)) != future.Pending {
		t.Fatal("pending promise polled ready")
	}

	resolve(99)
	drainJobs(t, e)
	if w.wakes.Load() == 0 {
		t.Fatal("settlement did not wake the awaiting future")
	}
	if f.Poll(future.NewContext(w)) != future.Ready {
		t.Fatal("settled promise polled pending")
	}
	if p.Result() != 99 {
		t.Errorf("Result = %v, want 99", p.Result())
	}
}

type stubWaker struct {
	wakes atomic.Int32
}

func (w *stubWaker) Wake()               { w.wakes.Add(1) }
func (w *stubWaker) WakeByRef()          { w.wakes.Add(1) }
func (w *stubWaker) Clone() future.Waker { return w }
func (w *stubWaker) Drop()               {}

func TestStackOwner(t *testing.T) {
	e := New()
	e.UpdateStackTop()
	if e.Owner() != goid.Get() {
		t.Fatal("owner not set to the current goroutine")
	}
	if err := e.CheckStack(); err != nil {
		t.Fatalf("CheckStack on owner: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- e.CheckStack() }()
	if err := <-errc; err == nil {
		t.Error("CheckStack from a foreign goroutine should fail")
	}
}

func TestClassRegistry(t *testing.T) {
	e := New()
	r := e.Classes()

	type keyA struct{}
	type keyB struct{}
	a := r.Register(keyA{})
	b := r.Register(keyB{})
	if a == b {
		t.Error("distinct keys share a class id")
	}
	if again := r.Register(keyA{}); again != a {
		t.Errorf("re-registration returned %d, want %d", again, a)
	}
	if id, ok := r.Lookup(keyA{}); !ok || id != a {
		t.Errorf("Lookup = (%d, %v), want (%d, true)", id, ok, a)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestSweeperReclaimsSettled(t *testing.T) {
	e := New()
	_, resolve, _ := e.NewPromise()
	pPending, _, _ := e.NewPromise()
	resolve("done")

	s := NewRegistrySweeper(e, time.Hour)
	stats := s.SweepNow()
	if stats.Promises != 1 {
		t.Errorf("swept %d promises, want 1", stats.Promises)
	}
	if e.TrackedPromises() != 1 {
		t.Errorf("TrackedPromises = %d, want 1", e.TrackedPromises())
	}
	if s.SweepCount() != 1 {
		t.Errorf("SweepCount = %d, want 1", s.SweepCount())
	}
	if s.LastStats() == nil {
		t.Error("LastStats = nil after a sweep")
	}
	_ = pPending
}

func TestSweepConcurrentWithSettlement(t *testing.T) {
	e := New()
	s := NewRegistrySweeper(e, time.Hour)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				s.SweepNow()
			}
		}
	}()

	// The engine owner settles promises while the sweeper reads their
	// states off-lock.
	for i := 0; i < 1000; i++ {
		_, resolve, _ := e.NewPromise()
		resolve(i)
	}

	close(stop)
	<-done
	s.SweepNow()
	if e.TrackedPromises() != 0 {
		t.Errorf("TrackedPromises = %d, want 0", e.TrackedPromises())
	}
}

func TestSweeperStartStop(t *testing.T) {
	e := New()
	s := NewRegistrySweeper(e, time.Millisecond)
	s.Start()
	s.Start() // second start is a no-op

	_, resolve, _ := e.NewPromise()
	resolve(nil)
	deadline := time.After(time.Second)
	for e.TrackedPromises() != 0 {
		select {
		case <-deadline:
			t.Fatal("sweep loop never reclaimed the settled promise")
		case <-time.After(time.Millisecond):
		}
	}

	s.Stop()
	s.Stop() // idempotent
}

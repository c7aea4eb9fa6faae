package future

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Small adapters
// ---------------------------------------------------------------------------

// Func adapts a plain function to a Future.
type Func func(cx *Context) Poll

// Poll calls the wrapped function.
func (f Func) Poll(cx *Context) Poll {
	return f(cx)
}

// Done returns a future that completes on its first poll after running fn.
// fn may be nil.
func Done(fn func()) Future {
	return Func(func(*Context) Poll {
		if fn != nil {
			fn()
		}
		return Ready
	})
}

// ---------------------------------------------------------------------------
// Timer: completes after a duration
// ---------------------------------------------------------------------------

// Timer is a future that completes once the deadline passes. The underlying
// time.Timer fires on a runtime goroutine and wakes the registered waker.
type Timer struct {
	d     time.Duration
	slot  WakerSlot
	fired atomic.Bool

	mu    sync.Mutex
	timer *time.Timer
}

// Sleep returns a future that completes d after its first poll.
func Sleep(d time.Duration) *Timer {
	return &Timer{d: d}
}

// Poll arms the timer on first call and completes once it has fired.
func (t *Timer) Poll(cx *Context) Poll {
	if t.fired.Load() {
		return Ready
	}
	t.slot.Register(cx.Waker())
	t.mu.Lock()
	if t.timer == nil {
		t.timer = time.AfterFunc(t.d, func() {
			t.fired.Store(true)
			t.slot.Wake()
		})
	}
	t.mu.Unlock()
	// The timer may have fired between the check and the registration; the
	// registered waker covers that window.
	if t.fired.Load() {
		return Ready
	}
	return Pending
}

// Dispose stops the timer and discards any parked waker.
func (t *Timer) Dispose() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	t.slot.Drop()
}

// ---------------------------------------------------------------------------
// Recv: completes when a channel yields a value (or closes)
// ---------------------------------------------------------------------------

// Recv is a future that completes with the next value received from a
// channel. The receive itself happens on a helper goroutine started at the
// first poll that finds the channel not immediately ready.
type Recv[T any] struct {
	ch   <-chan T
	slot WakerSlot
	done atomic.Bool

	mu      sync.Mutex
	started bool

	// Value and Ok hold the receive result once the future is ready.
	Value T
	Ok    bool
}

// RecvFrom returns a future completing with the next value from ch.
func RecvFrom[T any](ch <-chan T) *Recv[T] {
	return &Recv[T]{ch: ch}
}

// Poll tries a non-blocking receive, parking on the waker otherwise.
func (r *Recv[T]) Poll(cx *Context) Poll {
	if r.done.Load() {
		return Ready
	}
	r.slot.Register(cx.Waker())

	r.mu.Lock()
	started := r.started
	r.started = true
	r.mu.Unlock()
	if started {
		if r.done.Load() {
			return Ready
		}
		return Pending
	}

	select {
	case v, ok := <-r.ch:
		r.Value, r.Ok = v, ok
		r.done.Store(true)
		r.slot.Drop()
		return Ready
	default:
	}

	go func() {
		v, ok := <-r.ch
		r.Value, r.Ok = v, ok
		r.done.Store(true)
		r.slot.Wake()
	}()
	return Pending
}

// Dispose discards any parked waker. The helper goroutine, if started, stays
// blocked on the channel until the channel yields or closes; its result is
// discarded.
func (r *Recv[T]) Dispose() {
	r.slot.Drop()
}

// ---------------------------------------------------------------------------
// WaitContext: completes when a context is done
// ---------------------------------------------------------------------------

// ctxFuture bridges context cancellation into the poll model.
type ctxFuture struct {
	ctx  context.Context
	slot WakerSlot

	mu      sync.Mutex
	started bool
}

// WaitContext returns a future that completes once ctx is done. Inspect
// ctx.Err for the reason.
func WaitContext(ctx context.Context) Future {
	return &ctxFuture{ctx: ctx}
}

func (c *ctxFuture) Poll(cx *Context) Poll {
	select {
	case <-c.ctx.Done():
		return Ready
	default:
	}
	c.slot.Register(cx.Waker())

	c.mu.Lock()
	started := c.started
	c.started = true
	c.mu.Unlock()
	if !started {
		go func() {
			<-c.ctx.Done()
			c.slot.Wake()
		}()
	}
	return Pending
}

func (c *ctxFuture) Dispose() {
	c.slot.Drop()
}

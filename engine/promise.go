package engine

import (
	"sync"
	"sync/atomic"

	"github.com/chazu/riptide/future"
)

// ---------------------------------------------------------------------------
// Promise: engine-side deferred value with reaction jobs
// ---------------------------------------------------------------------------

// PromiseState is the settlement state of a promise.
type PromiseState uint8

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

// Reaction is a pair of settlement callbacks; either may be nil. Reactions
// run as internal jobs, with the engine lock held.
type Reaction struct {
	OnFulfilled func(e *Engine, value any)
	OnRejected  func(e *Engine, reason any)
}

// Promise is an engine-owned deferred value. All methods require the engine
// lock; settlement enqueues reaction jobs rather than running them inline,
// so reaction order follows job-queue order.
//
// state is atomic because the registry sweeper reads it without the engine
// lock; everything else on the promise stays engine-lock-only.
type Promise struct {
	id        uint64
	e         *Engine
	state     atomic.Uint32 // PromiseState
	result    any
	reactions []Reaction
	handled   bool
}

// NewPromise creates a pending promise and its resolve and reject
// functions. Both must be called with the engine lock held; calling either
// after settlement is a no-op.
func (e *Engine) NewPromise() (p *Promise, resolve func(any), reject func(any)) {
	p = &Promise{id: e.promises.register(), e: e}
	e.promises.track(p)
	resolve = func(v any) { p.settle(PromiseFulfilled, v) }
	reject = func(v any) { p.settle(PromiseRejected, v) }
	return
}

// State returns the promise's settlement state.
func (p *Promise) State() PromiseState {
	return PromiseState(p.state.Load())
}

// Settled reports whether the promise has been fulfilled or rejected.
func (p *Promise) Settled() bool {
	return p.State() != PromisePending
}

// Result returns the settled value or rejection reason; nil while pending.
func (p *Promise) Result() any {
	return p.result
}

// Then registers reaction callbacks. If the promise has already settled the
// matching callback is enqueued immediately.
func (p *Promise) Then(r Reaction) {
	p.handled = true
	if !p.Settled() {
		p.reactions = append(p.reactions, r)
		return
	}
	p.enqueueReaction(r)
}

func (p *Promise) settle(state PromiseState, v any) {
	if p.Settled() {
		return
	}
	p.result = v
	p.state.Store(uint32(state))

	if state == PromiseRejected && !p.handled && p.e.rejection != nil {
		p.e.rejection(p, v)
	}

	rs := p.reactions
	p.reactions = nil
	for _, r := range rs {
		p.enqueueReaction(r)
	}
}

func (p *Promise) enqueueReaction(r Reaction) {
	state, result := p.State(), p.result
	_ = p.e.EnqueueJob(func(e *Engine) error {
		switch state {
		case PromiseFulfilled:
			if r.OnFulfilled != nil {
				r.OnFulfilled(e, result)
			}
		case PromiseRejected:
			if r.OnRejected != nil {
				r.OnRejected(e, result)
			}
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Await: bridge a promise into the poll model
// ---------------------------------------------------------------------------

// PromiseFuture completes when its promise settles. Poll must run under the
// engine lock (the scheduler guarantees this for spawned tasks).
type PromiseFuture struct {
	p         *Promise
	slot      future.WakerSlot
	listening bool
}

// Await returns a future completing when p settles; read State/Result off p
// after completion.
func (p *Promise) Await() *PromiseFuture {
	return &PromiseFuture{p: p}
}

func (f *PromiseFuture) Poll(cx *future.Context) future.Poll {
	if f.p.Settled() {
		return future.Ready
	}
	f.slot.Register(cx.Waker())
	if !f.listening {
		f.listening = true
		wake := func(*Engine, any) { f.slot.Wake() }
		f.p.Then(Reaction{OnFulfilled: wake, OnRejected: wake})
	}
	return future.Pending
}

func (f *PromiseFuture) Dispose() {
	f.slot.Drop()
}

// ---------------------------------------------------------------------------
// promiseRegistry: per-engine promise bookkeeping
// ---------------------------------------------------------------------------

// promiseRegistry tracks live promises for introspection and sweeping. It
// carries its own lock so the sweeper can run without the engine lock.
type promiseRegistry struct {
	mu     sync.Mutex
	nextID atomic.Uint64
	byID   map[uint64]*Promise
}

func newPromiseRegistry() *promiseRegistry {
	return &promiseRegistry{byID: make(map[uint64]*Promise)}
}

func (r *promiseRegistry) register() uint64 {
	return r.nextID.Add(1)
}

func (r *promiseRegistry) track(p *Promise) {
	r.mu.Lock()
	r.byID[p.id] = p
	r.mu.Unlock()
}

func (r *promiseRegistry) clear() {
	r.mu.Lock()
	r.byID = make(map[uint64]*Promise)
	r.mu.Unlock()
}

func (r *promiseRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// sweep removes settled promises from the registry, returning the number
// reclaimed. The settlement state is read atomically since the sweeper does
// not hold the engine lock; a promise observed as pending is swept on a
// later pass.
func (r *promiseRegistry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, p := range r.byID {
		if p.Settled() {
			delete(r.byID, id)
			n++
		}
	}
	return n
}

// TrackedPromises returns the number of promises currently tracked. Safe to
// call without the engine lock.
func (e *Engine) TrackedPromises() int {
	return e.promises.size()
}

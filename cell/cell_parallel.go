//go:build !riptide_serial

package cell

import (
	"context"
	"sync"

	"github.com/chazu/riptide/future"
)

// ---------------------------------------------------------------------------
// Cell: thread-safe shared value (default build)
// ---------------------------------------------------------------------------

// Cell holds a value of type T behind an exclusive lock that can be acquired
// blocking, non-blocking, context-suspending, or poll-based.
type Cell[T any] struct {
	mu      sync.Mutex // protects locked and waiters
	locked  bool
	waiters []waiter
	value   T
}

// waiter is one parked acquirer: either a goroutine blocked on ch or a
// poll-based caller represented by a cloned waker.
type waiter struct {
	ch chan struct{}
	w  future.Waker
}

// New returns a cell owning value.
func New[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// Lock acquires the cell, blocking the calling goroutine until available.
func (c *Cell[T]) Lock() *Guard[T] {
	for {
		c.mu.Lock()
		if !c.locked {
			c.locked = true
			c.mu.Unlock()
			return &Guard[T]{cell: c}
		}
		ch := make(chan struct{}, 1)
		c.waiters = append(c.waiters, waiter{ch: ch})
		c.mu.Unlock()
		<-ch
	}
}

// TryLock acquires the cell if it is free, returning (nil, false) on
// contention. It never blocks.
func (c *Cell[T]) TryLock() (*Guard[T], bool) {
	c.mu.Lock()
	if c.locked {
		c.mu.Unlock()
		return nil, false
	}
	c.locked = true
	c.mu.Unlock()
	return &Guard[T]{cell: c}, true
}

// LockCtx acquires the cell, suspending the calling context rather than
// spinning; it returns ctx.Err() if ctx is done first.
func (c *Cell[T]) LockCtx(ctx context.Context) (*Guard[T], error) {
	for {
		c.mu.Lock()
		if !c.locked {
			c.locked = true
			c.mu.Unlock()
			return &Guard[T]{cell: c}, nil
		}
		ch := make(chan struct{}, 1)
		c.waiters = append(c.waiters, waiter{ch: ch})
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			c.abandon(ch)
			return nil, ctx.Err()
		}
	}
}

// PollLock attempts a non-blocking acquire; on contention it parks a clone
// of w to be woken at the next release and reports false.
func (c *Cell[T]) PollLock(w future.Waker) (*Guard[T], bool) {
	c.mu.Lock()
	if !c.locked {
		c.locked = true
		c.mu.Unlock()
		return &Guard[T]{cell: c}, true
	}
	c.waiters = append(c.waiters, waiter{w: w.Clone()})
	c.mu.Unlock()
	return nil, false
}

// abandon removes a waiter entry after a cancelled LockCtx, tolerating the
// entry having already been signalled.
func (c *Cell[T]) abandon(ch chan struct{}) {
	c.mu.Lock()
	for i, wt := range c.waiters {
		if wt.ch == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// release frees the cell and signals every parked waiter. Waiters re-contend
// for the lock; waking all of them trades a little churn for the guarantee
// that no acquirer is ever left sleeping behind a waker that went away.
func (c *Cell[T]) release() {
	c.mu.Lock()
	if !c.locked {
		c.mu.Unlock()
		panic("cell: unlock of an unlocked cell")
	}
	c.locked = false
	ws := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, wt := range ws {
		if wt.ch != nil {
			wt.ch <- struct{}{}
		} else {
			wt.w.Wake()
		}
	}
}

// ---------------------------------------------------------------------------
// Guard
// ---------------------------------------------------------------------------

// Guard is a scoped lock on a cell. References obtained through Value must
// not outlive the guard.
type Guard[T any] struct {
	cell *Cell[T]
}

// Value returns the guarded value.
func (g *Guard[T]) Value() *T {
	return &g.cell.value
}

// Unlock releases the cell. Conventionally deferred at acquisition.
func (g *Guard[T]) Unlock() {
	g.cell.release()
}

//go:build riptide_serial

package cell

import (
	"context"

	"github.com/chazu/riptide/future"
)

// ---------------------------------------------------------------------------
// Cell: single-owner shared value (riptide_serial build)
// ---------------------------------------------------------------------------

// Cell holds a value of type T for a runtime confined to one goroutine.
// Acquisition is a plain flag flip; contention means the single owner tried
// to re-enter, which is a usage bug, so the blocking form panics instead of
// deadlocking silently.
type Cell[T any] struct {
	locked bool
	value  T
}

// New returns a cell owning value.
func New[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// Lock acquires the cell. Panics on re-entrant acquisition: with a single
// logical owner there is no other holder to wait for.
func (c *Cell[T]) Lock() *Guard[T] {
	if c.locked {
		panic("cell: re-entrant acquire of single-owner cell")
	}
	c.locked = true
	return &Guard[T]{cell: c}
}

// TryLock acquires the cell if free, returning (nil, false) otherwise.
func (c *Cell[T]) TryLock() (*Guard[T], bool) {
	if c.locked {
		return nil, false
	}
	c.locked = true
	return &Guard[T]{cell: c}, true
}

// LockCtx acquires the cell. As with Lock, contention can only mean
// re-entrant use by the single owner and panics.
func (c *Cell[T]) LockCtx(ctx context.Context) (*Guard[T], error) {
	return c.Lock(), nil
}

// PollLock behaves as TryLock; the waker is not retained since no other
// owner exists to release the cell.
func (c *Cell[T]) PollLock(w future.Waker) (*Guard[T], bool) {
	return c.TryLock()
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

// Unlock releases the cell.
func (g *Guard[T]) Unlock() {
	if !g.cell.locked {
		panic("cell: unlock of an unlocked cell")
	}
	g.cell.locked = false
}

package engine

import (
	"fmt"
	"unsafe"

	"github.com/petermattis/goid"
)

// ---------------------------------------------------------------------------
// Native stack tracking
// ---------------------------------------------------------------------------

// maxStackDepth bounds how far below the recorded stack top engine
// recursion may reach before CheckStack fails. Matches the order of
// magnitude embedded interpreters use for native recursion budgets.
const maxStackDepth = 1 << 20

// stackMarker records which goroutine may touch the engine and where its
// stack stood when the runtime lock was taken. Goroutine stacks can move
// when they grow, so the depth check is a best-effort budget, refreshed on
// every lock acquisition.
type stackMarker struct {
	owner int64
	top   uintptr
}

// UpdateStackTop must be called by the lock holder immediately after
// acquiring the runtime lock, before any engine call, whenever control may
// have crossed a goroutine boundary.
func (e *Engine) UpdateStackTop() {
	var probe byte
	e.stack.owner = goid.Get()
	e.stack.top = uintptr(unsafe.Pointer(&probe))
}

// CheckStack verifies the caller is the recorded owner and within the
// recursion budget. Engine entry points call this before deep work.
func (e *Engine) CheckStack() error {
	if g := goid.Get(); g != e.stack.owner {
		return fmt.Errorf("engine: goroutine %d touched engine owned by goroutine %d", g, e.stack.owner)
	}
	var probe byte
	sp := uintptr(unsafe.Pointer(&probe))
	if sp < e.stack.top && e.stack.top-sp > maxStackDepth {
		return fmt.Errorf("engine: native stack budget exceeded (%d bytes)", e.stack.top-sp)
	}
	return nil
}

// Owner returns the goroutine id recorded by the last UpdateStackTop.
func (e *Engine) Owner() int64 {
	return e.stack.owner
}

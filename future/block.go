package future

import (
	"context"
)

// ---------------------------------------------------------------------------
// Block: minimal external executor
// ---------------------------------------------------------------------------

// chanWaker is the waker used by Block. Wakes collapse into a single pending
// notification on a buffered channel. It has no reference count to manage:
// the channel lives as long as the Block call.
type chanWaker struct {
	ch chan struct{}
}

func (w *chanWaker) Wake() { w.WakeByRef() }

func (w *chanWaker) WakeByRef() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *chanWaker) Clone() Waker { return w }

func (w *chanWaker) Drop() {}

// Block drives f on the calling goroutine until it completes or ctx is
// cancelled. It is the minimal external executor used by tests, the demo
// command, and embedders that dedicate a goroutine to a runtime driver.
//
// On cancellation the future is left unfinished; if it implements Disposer
// it is disposed before returning.
func Block(ctx context.Context, f Future) error {
	w := &chanWaker{ch: make(chan struct{}, 1)}
	cx := NewContext(w)
	for {
		if f.Poll(cx) == Ready {
			return nil
		}
		select {
		case <-w.ch:
		case <-ctx.Done():
			if d, ok := f.(Disposer); ok {
				d.Dispose()
			}
			return ctx.Err()
		}
	}
}

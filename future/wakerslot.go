package future

import (
	"sync"
)

// ---------------------------------------------------------------------------
// WakerSlot: single-waker registration cell
// ---------------------------------------------------------------------------

// WakerSlot holds at most one waker, replacing any previous registration.
// It is the rendezvous between a future that parks (registering the waker of
// its latest poll) and an event source that fires from another goroutine.
//
// All methods are safe for concurrent use.
type WakerSlot struct {
	mu    sync.Mutex
	waker Waker
}

// Register stores a clone of w, dropping any previously registered waker.
func (s *WakerSlot) Register(w Waker) {
	clone := w.Clone()
	s.mu.Lock()
	old := s.waker
	s.waker = clone
	s.mu.Unlock()
	if old != nil {
		old.Drop()
	}
}

// Wake takes the registered waker, if any, and wakes it. The wake happens
// outside the slot's lock so a re-registration from the woken party cannot
// deadlock.
func (s *WakerSlot) Wake() {
	s.mu.Lock()
	w := s.waker
	s.waker = nil
	s.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// Drop discards the registered waker without waking it.
func (s *WakerSlot) Drop() {
	s.mu.Lock()
	w := s.waker
	s.waker = nil
	s.mu.Unlock()
	if w != nil {
		w.Drop()
	}
}

// Package trace records scheduler activity for offline analysis: spawns,
// driver passes, contained task panics and teardown, with a CBOR wire
// encoding for dump files.
package trace

import (
	"fmt"
	"sync"
	"time"
)

// EventKind classifies a trace event.
type EventKind uint8

const (
	// EventSpawn records a host future entering the scheduler.
	EventSpawn EventKind = iota + 1
	// EventDriverPass records one completed driver pass.
	EventDriverPass
	// EventTaskPanic records a contained task panic.
	EventTaskPanic
	// EventClose records runtime teardown.
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventSpawn:
		return "spawn"
	case EventDriverPass:
		return "driver-pass"
	case EventTaskPanic:
		return "task-panic"
	case EventClose:
		return "close"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one recorded occurrence.
type Event struct {
	Kind   EventKind `cbor:"1,keyasint"`
	At     time.Time `cbor:"2,keyasint"`
	Detail string    `cbor:"3,keyasint,omitempty"`
	Jobs   int       `cbor:"4,keyasint,omitempty"`
	Tasks  int       `cbor:"5,keyasint,omitempty"`
}

// Describe renders a value for an event's Detail field: strings pass
// through, everything else is described by concrete type.
func Describe(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%T", v)
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

// DefaultCapacity is the default recorder ring size.
const DefaultCapacity = 4096

// Recorder accumulates events in a bounded ring. Safe for concurrent use;
// recording from wake paths is mutex-cheap and allocation-free once the
// ring is warm.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	start  int // ring read position once full
	full   bool
	cap    int
}

// NewRecorder creates a recorder keeping at most capacity events
// (DefaultCapacity when non-positive).
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{cap: capacity}
}

// Record appends ev, stamping At if unset and evicting the oldest event
// when the ring is full.
func (r *Recorder) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.mu.Lock()
	if len(r.events) < r.cap {
		r.events = append(r.events, ev)
	} else {
		r.events[r.start] = ev
		r.start = (r.start + 1) % r.cap
		r.full = true
	}
	r.mu.Unlock()
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Event, len(r.events))
		copy(out, r.events)
		return out
	}
	out := make([]Event, 0, r.cap)
	out = append(out, r.events[r.start:]...)
	out = append(out, r.events[:r.start]...)
	return out
}

// Len returns the number of retained events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Package future defines the poll-based asynchronous primitives driven by
// the riptide scheduler: a Future is repeatedly polled with a Context until
// it reports Ready, and registers the Context's Waker to request a re-poll
// when it returns Pending.
package future

// Poll is the result of polling a Future.
type Poll uint8

const (
	// Pending means the future is not finished and has arranged (via the
	// context's waker) to be re-polled when it can make progress.
	Pending Poll = iota
	// Ready means the future has finished and must not be polled again.
	Ready
)

// Future is a unit of asynchronous work. Poll either completes the work and
// returns Ready, or stashes a clone of cx's waker and returns Pending.
//
// Poll is never called concurrently for the same future; the scheduler
// guarantees a single logical owner at any instant.
type Future interface {
	Poll(cx *Context) Poll
}

// Disposer is implemented by futures that hold resources needing explicit
// release. Dispose is called exactly once, when the future's erased state
// is released: after completion, on cancellation, or at scheduler teardown.
// It is never called concurrently with Poll.
type Disposer interface {
	Dispose()
}

// Waker is a handle for marking a parked future ready. Handles are
// reference-counted: Clone hands out a new logical owner, Drop releases one,
// and Wake both wakes the target and releases the handle (the caller must
// not use it afterwards). WakeByRef wakes without releasing.
//
// All methods are safe to call from any goroutine.
type Waker interface {
	Wake()
	WakeByRef()
	Clone() Waker
	Drop()
}

// Context carries the waker for the current poll.
type Context struct {
	waker Waker
}

// NewContext returns a poll context using w. The context borrows w; callers
// that need to hold on to the waker past the poll must Clone it.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker for the current poll. The returned handle is
// borrowed; Clone it before storing.
func (cx *Context) Waker() Waker {
	return cx.waker
}

// Package engine implements the embedded script engine driven by the
// riptide runtime: a single-threaded job (microtask) queue with promises,
// host-visible exceptions, interrupt and rejection hooks, and the
// native-stack bookkeeping the locking discipline depends on.
//
// An Engine has exactly one logical owner at any instant. Every method that
// is not explicitly documented otherwise must be called while holding the
// runtime lock that guards the engine.
package engine

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("riptide.engine")

// ErrClosed is returned by operations on a torn-down engine.
var ErrClosed = errors.New("engine: closed")

// Job is one pending internal job: a promise reaction or other deferred
// engine work. Jobs run with the engine lock held.
type Job func(e *Engine) error

// InterruptHandler is polled between jobs; returning true aborts the
// current drain with an interrupt exception.
type InterruptHandler func() bool

// RejectionTracker observes promise rejections that had no handler
// registered at settle time.
type RejectionTracker func(p *Promise, reason any)

// Engine is the single-threaded scripting engine core.
type Engine struct {
	jobs  []Job
	alive bool

	interrupt InterruptHandler
	rejection RejectionTracker

	stack stackMarker

	classes  *ClassRegistry
	promises *promiseRegistry

	jobsRun uint64
}

// New creates a live engine with empty queues.
func New() *Engine {
	return &Engine{
		alive:    true,
		classes:  newClassRegistry(),
		promises: newPromiseRegistry(),
	}
}

// IsAlive reports whether the engine has not been torn down.
func (e *Engine) IsAlive() bool {
	return e.alive
}

// Close tears the engine down: pending jobs are discarded and further
// enqueues fail fast. Idempotent.
func (e *Engine) Close() {
	if !e.alive {
		return
	}
	e.alive = false
	if n := len(e.jobs); n > 0 {
		log.Infof("discarding %d pending jobs on close", n)
	}
	e.jobs = nil
	e.promises.clear()
}

// EnqueueJob appends a job to the internal queue.
func (e *Engine) EnqueueJob(j Job) error {
	if !e.alive {
		return ErrClosed
	}
	e.jobs = append(e.jobs, j)
	return nil
}

// PendingJobs returns the number of queued internal jobs.
func (e *Engine) PendingJobs() int {
	return len(e.jobs)
}

// JobsRun returns the number of jobs executed over the engine's lifetime.
func (e *Engine) JobsRun() uint64 {
	return e.jobsRun
}

// ExecutePendingJob runs exactly one queued job, if any. It reports whether
// a job ran; a job's own failure or panic is contained and returned as the
// error, never left to unwind into the caller.
func (e *Engine) ExecutePendingJob() (bool, error) {
	if !e.alive || len(e.jobs) == 0 {
		return false, nil
	}
	if e.interrupt != nil && e.interrupt() {
		return false, &Exception{Value: "interrupted"}
	}

	j := e.jobs[0]
	e.jobs[0] = nil
	e.jobs = e.jobs[1:]
	e.jobsRun++

	err := e.runJob(j)
	return true, err
}

func (e *Engine) runJob(j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ToException(r)
		}
	}()
	return j(e)
}

// SetInterruptHandler installs f, replacing any previous handler. Pass nil
// to clear.
func (e *Engine) SetInterruptHandler(f InterruptHandler) {
	e.interrupt = f
}

// SetRejectionTracker installs f, replacing any previous tracker. Pass nil
// to clear.
func (e *Engine) SetRejectionTracker(f RejectionTracker) {
	e.rejection = f
}

// Classes returns the engine's class-id registry.
func (e *Engine) Classes() *ClassRegistry {
	return e.classes
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// Exception is a host-visible engine exception value.
type Exception struct {
	Value any
}

func (x *Exception) Error() string {
	return fmt.Sprintf("engine: exception: %v", x.Value)
}

// ToException converts an arbitrary recovered value into an *Exception,
// passing through values that already are one.
func ToException(v any) *Exception {
	if x, ok := v.(*Exception); ok {
		return x
	}
	return &Exception{Value: v}
}

// Throw surfaces a recovered task panic as an engine exception: if a
// rejection tracker is installed it is notified (with no associated
// promise), otherwise the exception is logged. The driver uses this to
// contain misbehaving tasks without unwinding.
func (e *Engine) Throw(recovered any) {
	x := ToException(recovered)
	if e.rejection != nil {
		e.rejection(nil, x.Value)
		return
	}
	log.Errorf("uncaught task exception: %v", x.Value)
}

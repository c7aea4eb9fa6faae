// Package cell provides the shared-state container used for everything the
// riptide scheduler, runtime handle and spawned tasks share: a
// reference-counted (by Go's GC) value with interior mutability behind an
// exclusive lock.
//
// Two interchangeable implementations exist, selected for the whole build:
// the default thread-safe form, and a single-owner non-atomic form enabled
// with the riptide_serial build tag for embedders that confine a runtime to
// one goroutine. Mixing forms in one binary is impossible by construction.
//
// All variants expose the same surface: blocking Lock, non-blocking TryLock,
// context-suspending LockCtx, and poll-based PollLock for waker-integrated
// callers such as the runtime driver. Guards are released with Unlock,
// conventionally deferred; because release is deferred, a panic unwinding
// through a critical section still releases the cell, so there is no notion
// of lock poisoning.
package cell

package futurelite

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRejected is reported when an executor refuses work, typically
	// because it is shutting down. Rejection is terminal for the call
	// that observed it; nothing in this package retries.
	ErrRejected = errors.New("futurelite: executor rejected work")

	// ErrClosed is reported by operations on a closed generator.
	ErrClosed = errors.New("futurelite: closed")

	// ErrNoIOExecutor is reported by AwaitIO without an I/O sink.
	ErrNoIOExecutor = errors.New("futurelite: no io executor")
)

// Executor is the abstract scheduling sink every primitive in this
// package is built against. It owns no tasks; it only runs functions.
//
// Implementations must tolerate concurrent Schedule and CallLater
// calls from arbitrary goroutines.
type Executor interface {
	// Name identifies the executor for diagnostics.
	Name() string

	// Schedule submits fn for asynchronous execution. A false return
	// means fn was rejected and will never run.
	Schedule(fn func()) bool

	// CallLater runs fn on the executor after d. It returns nil when
	// the callback was rejected. Dropping the returned handle does not
	// cancel the callback.
	CallLater(fn func(), d time.Duration) TimerHandle

	// CurrentThreadInExecutor reports whether the goroutine logically
	// running the caller (see GoroutineID) is managed by this
	// executor.
	CurrentThreadInExecutor(ctx context.Context) bool
}

// ContextExecutor is implemented by executors that subdivide their
// work into logical contexts, for example one queue per worker. The
// checkout/checkin pair is the primitive behind executor affinity.
type ContextExecutor interface {
	Executor

	// CurrentContextID identifies the sub-context the caller runs on.
	// The result is only meaningful when CurrentThreadInExecutor
	// holds; callers off the executor may get any value, typically
	// zero.
	CurrentContextID(ctx context.Context) uint64

	// Checkout captures the context of the calling goroutine. It must
	// be called from the goroutine driving the task, which is where
	// Awaiter.Suspend runs.
	Checkout() Context

	// Checkin runs fn on the captured context c. A NoContext token
	// behaves like Schedule.
	Checkin(fn func(), c Context, opts ScheduleOptions) bool
}

// IOProvider is implemented by executors that have an associated
// asynchronous I/O submission sink.
type IOProvider interface {
	IOExecutor() IOExecutor
}

// Context is an opaque token produced by Checkout and consumed by
// Checkin. Only the executor that produced it can interpret it.
type Context any

// NoContext is the token of executors without sub-contexts.
var NoContext Context

// ScheduleOptions tunes a Checkin.
type ScheduleOptions struct {
	// Prompt asks the executor to run the function ahead of work
	// already queued on the context.
	Prompt bool
}

// TimerHandle refers to a callback registered with CallLater.
type TimerHandle interface {
	// Cancel makes a best-effort attempt to stop the callback. It
	// reports whether the callback was stopped before it fired; a
	// callback that is already firing is not interrupted.
	Cancel() bool
}

// ContextID returns ex's current sub-context for the caller, or zero
// when ex does not subdivide its work.
func ContextID(ctx context.Context, ex Executor) uint64 {
	if ce, ok := ex.(ContextExecutor); ok {
		return ce.CurrentContextID(ctx)
	}
	return 0
}

// Checkout captures ex's context for the calling goroutine. Executors
// without contexts yield NoContext.
func Checkout(ex Executor) Context {
	if ce, ok := ex.(ContextExecutor); ok {
		return ce.Checkout()
	}
	return NoContext
}

// Checkin resumes fn on the context captured by Checkout. Without an
// explicit context, or on an executor without contexts, it degrades
// to Schedule.
func Checkin(ex Executor, fn func(), c Context, opts ScheduleOptions) bool {
	if ce, ok := ex.(ContextExecutor); ok && c != NoContext {
		return ce.Checkin(fn, c, opts)
	}
	return ex.Schedule(fn)
}

// IOExecutorOf returns the I/O sink associated with ex, or nil.
func IOExecutorOf(ex Executor) IOExecutor {
	if p, ok := ex.(IOProvider); ok {
		return p.IOExecutor()
	}
	return nil
}

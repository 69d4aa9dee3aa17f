package futurelite

import (
	"context"
	"sync/atomic"
)

// Awaiter is the suspension protocol between a task chain and the
// thing it waits for.
//
// Ready is checked first; when it reports true the caller continues
// without suspending. Otherwise the caller is parked and Suspend is
// called with its continuation k. Suspend runs after the caller is
// parked, so k may be invoked from any goroutine, even before Suspend
// returns. Returning false from Suspend means the awaiter decided not
// to suspend after all and the caller continues immediately; k must
// then never be called.
type Awaiter interface {
	Ready() bool
	Suspend(k func()) bool
}

// TransferAwaiter is an Awaiter that can hand control directly to
// another continuation when the caller parks. The driver runs the
// returned function, if any, instead of returning to its own caller.
// When an awaiter implements both methods the driver uses Transfer.
type TransferAwaiter interface {
	Awaiter
	Transfer(k func()) func()
}

// Suspender is anything that can be parked on an Awaiter: a *Task
// parks its coroutine, Blocking parks the calling goroutine.
type Suspender interface {
	// Await parks the caller until a resumes it.
	Await(a Awaiter)
	// Executor is the executor the caller should be resumed on, or
	// nil when resumption happens inline.
	Executor() Executor
	// Context is the caller's context.
	Context() context.Context
}

// Blocking returns a Suspender that parks the calling goroutine. It is
// the bridge between plain goroutines and the primitives in this
// package. Waits are not cancelled by ctx; cancellation here is always
// cooperative.
func Blocking(ctx context.Context) Suspender {
	return blocking{ctx: ctx}
}

type blocking struct {
	ctx context.Context
}

func (b blocking) Await(a Awaiter) { SyncAwait(a) }

func (blocking) Executor() Executor { return nil }

func (b blocking) Context() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

// SyncAwait blocks the calling goroutine until a resumes it.
func SyncAwait(a Awaiter) {
	if a.Ready() {
		return
	}

	done := make(chan struct{})
	k := func() { close(done) }

	if ta, ok := a.(TransferAwaiter); ok {
		if next := ta.Transfer(k); next != nil {
			next()
		}
	} else if !a.Suspend(k) {
		return
	}

	<-done
}

const (
	oneshotPending int32 = iota
	oneshotParked
	oneshotFired
)

// oneshot resolves the race between a completion that may fire on any
// goroutine and the awaiter that is still deciding whether to park.
// Whichever side comes second is responsible for the continuation.
type oneshot struct {
	state atomic.Int32
	k     func()
}

func (o *oneshot) arm(k func()) { o.k = k }

// park reports whether the caller should stay suspended. False means
// fire already happened and the caller continues synchronously.
func (o *oneshot) park() bool {
	return o.state.CompareAndSwap(oneshotPending, oneshotParked)
}

func (o *oneshot) fire() {
	if o.state.Swap(oneshotFired) == oneshotParked {
		o.k()
	}
}

func (o *oneshot) fired() bool {
	return o.state.Load() == oneshotFired
}

// AwaitCallback suspends s until start delivers a result through its
// callback. The callback may be invoked from any goroutine, including
// synchronously from within start; only the first invocation counts.
// When s is a task with an executor, the task resumes on that
// executor's context rather than on the goroutine that invoked the
// callback.
func AwaitCallback[T any](s Suspender, start func(cb func(T, error))) (T, error) {
	a := &callbackAwaiter[T]{start: start}
	s.Await(a)
	return a.val, a.err
}

type callbackAwaiter[T any] struct {
	start  func(func(T, error))
	val    T
	err    error
	called atomic.Bool
	once   oneshot
}

func (a *callbackAwaiter[T]) Ready() bool { return false }

func (a *callbackAwaiter[T]) Suspend(k func()) bool {
	a.once.arm(k)
	a.start(func(v T, err error) {
		if !a.called.CompareAndSwap(false, true) {
			return
		}
		a.val, a.err = v, err
		a.once.fire()
	})
	return a.once.park()
}

package futurelite

import (
	"context"
	"sync/atomic"
)

// Lazy is a computation that does nothing until it is started or
// awaited. It has a single owner: starting it twice panics. Its result
// is delivered as a Try to exactly one observer.
type Lazy[T any] struct {
	noCopy  noCopy
	fn      func(context.Context, *Task) (T, error)
	ex      Executor
	started atomic.Bool
}

// NewLazy wraps fn. The body receives its own Task, through which it
// suspends on other primitives.
func NewLazy[T any](fn func(context.Context, *Task) (T, error)) *Lazy[T] {
	return &Lazy[T]{fn: fn}
}

// Via binds the computation to ex: it starts on ex and every
// suspension resumes on ex. It returns l for chaining.
func (l *Lazy[T]) Via(ex Executor) *Lazy[T] {
	l.ex = ex
	return l
}

// Executor returns the executor the computation is bound to.
func (l *Lazy[T]) Executor() Executor {
	return l.ex
}

func (l *Lazy[T]) claim() {
	if !l.started.CompareAndSwap(false, true) {
		panic("futurelite: lazy started twice")
	}
}

func (l *Lazy[T]) newTask(ctx context.Context, ex Executor, cb func(Try[T])) *Task {
	var res Try[T]
	return newTask(
		ctx,
		ex,
		func(ctx context.Context, t *Task) {
			v, err := l.fn(ctx, t)
			res = Try[T]{val: v, err: err, ok: true}
		},
		func(err error) {
			if err != nil {
				res = Failure[T](err)
			}
			if cb != nil {
				cb(res)
			}
		},
	)
}

// Start runs the computation detached and hands its result to cb,
// which may be nil. Without an executor the computation runs inline
// until its first suspension. When the executor rejects it, cb
// receives ErrRejected.
func (l *Lazy[T]) Start(ctx context.Context, cb func(Try[T])) {
	l.claim()

	t := l.newTask(ctx, l.ex, cb)
	if l.ex == nil {
		t.step()
		return
	}

	if !l.ex.Schedule(t.step) {
		t.cancel()
		if cb != nil {
			cb(Failure[T](ErrRejected))
		}
	}
}

// Get starts the computation and blocks the calling goroutine until it
// finishes or ctx is done. A cancelled ctx abandons the wait, not the
// computation.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	ch := make(chan Try[T], 1)
	l.Start(ctx, func(r Try[T]) { ch <- r })

	select {
	case r := <-ch:
		return r.Value()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Await runs the computation as a child of s and suspends s until it
// finishes. An unbound computation inherits the executor of s.
func (l *Lazy[T]) Await(s Suspender) (T, error) {
	l.claim()

	ex := l.ex
	if ex == nil {
		ex = s.Executor()
	}

	a := &lazyAwaiter[T]{l: l, ctx: s.Context(), ex: ex, parent: s.Executor()}
	s.Await(a)
	return a.res.Value()
}

type lazyAwaiter[T any] struct {
	l      *Lazy[T]
	ctx    context.Context
	ex     Executor
	parent Executor
	res    Try[T]
	once   oneshot
}

func (a *lazyAwaiter[T]) Ready() bool { return false }

func (a *lazyAwaiter[T]) Suspend(k func()) bool {
	a.once.arm(k)

	t := a.l.newTask(a.ctx, a.ex, func(r Try[T]) {
		a.res = r
		a.once.fire()
	})

	if a.ex == nil || a.ex == a.parent {
		// Same executor: run the child on this goroutine right away.
		t.step()
	} else if !a.ex.Schedule(t.step) {
		t.cancel()
		a.res = Failure[T](ErrRejected)
		return false
	}

	return a.once.park()
}

// The child finishes on its own executor's goroutine and resumes the
// parent right there.
func (a *lazyAwaiter[T]) resumesOn(ex Executor) bool {
	return a.ex == ex
}

package futurelite

import (
	"time"
)

// After returns an Awaiter that resumes its caller on ex once d has
// elapsed, using ex.CallLater. A nil ex falls back to a runtime timer
// and resumes inline on the timer goroutine.
//
// A non-positive d still suspends when there is an executor: the
// caller goes to the back of the executor's queue. Only without an
// executor does it continue immediately.
func After(ex Executor, d time.Duration) Awaiter {
	return &sleepAwaiter{ex: ex, d: d}
}

type sleepAwaiter struct {
	ex       Executor
	d        time.Duration
	rejected bool
}

func (a *sleepAwaiter) Ready() bool {
	return a.d <= 0 && a.ex == nil
}

func (a *sleepAwaiter) Suspend(k func()) bool {
	if a.ex == nil {
		time.AfterFunc(a.d, k)
		return true
	}

	if a.d <= 0 {
		if !a.ex.Schedule(k) {
			a.rejected = true
			return false
		}
		return true
	}

	if a.ex.CallLater(k, a.d) == nil {
		a.rejected = true
		return false
	}
	return true
}

// Sleep suspends s for d on its own executor. Sleeping cannot be
// interrupted, and Sleep(s, 0) still yields to the executor. It
// returns false when the executor rejected the timer, in which case s
// continues immediately.
func Sleep(s Suspender, d time.Duration) bool {
	a := &sleepAwaiter{ex: s.Executor(), d: d}
	s.Await(a)
	return !a.rejected
}

// Reschedule parks t and puts it back on its executor's queue, letting
// other work run first. It is a no-op for tasks without an executor or
// when the executor rejects the request.
func Reschedule(t *Task) {
	t.Await(&rescheduleAwaiter{ex: t.Executor()})
}

type rescheduleAwaiter struct {
	ex Executor
}

func (a *rescheduleAwaiter) Ready() bool {
	return a.ex == nil
}

func (a *rescheduleAwaiter) Suspend(k func()) bool {
	return Checkin(a.ex, k, Checkout(a.ex), ScheduleOptions{})
}

func (a *rescheduleAwaiter) resumesOn(ex Executor) bool {
	return a.ex == ex
}

package futurelite

import (
	"fmt"
	"sync/atomic"
)

// affine is implemented by awaiters that already resume their caller
// on ex. Task.Await does not wrap those in Via.
type affine interface {
	resumesOn(ex Executor) bool
}

// Via wraps a foreign awaiter so that the caller resumes on ex, on the
// context it suspended from, no matter which goroutine completes a.
//
// Readiness is delegated to a. When the caller parks, the context of
// the driving goroutine is checked out and a receives a substitute
// continuation that checks the real one back in. If a declines to
// suspend, a no-op checkin keeps the checkout/checkin pairing intact
// and the caller continues synchronously. A TransferAwaiter keeps its
// direct-resume protocol.
//
// A nil ex returns a unchanged: the caller resumes inline.
func Via(ex Executor, a Awaiter) Awaiter {
	if ex == nil {
		return a
	}
	if ta, ok := a.(TransferAwaiter); ok {
		return &viaTransferAwaiter{viaAwaiter: viaAwaiter{ex: ex, a: a}, ta: ta}
	}
	return &viaAwaiter{ex: ex, a: a}
}

type viaAwaiter struct {
	ex Executor
	a  Awaiter
}

func (v *viaAwaiter) Ready() bool {
	return v.a.Ready()
}

func (v *viaAwaiter) Suspend(k func()) bool {
	sw := checkoutSwitch(v.ex, k)
	if !v.a.Suspend(sw.resume) {
		sw.checkin(func() {})
		return false
	}
	return true
}

func (v *viaAwaiter) resumesOn(ex Executor) bool {
	return v.ex == ex
}

type viaTransferAwaiter struct {
	viaAwaiter
	ta TransferAwaiter
}

func (v *viaTransferAwaiter) Transfer(k func()) func() {
	sw := checkoutSwitch(v.ex, k)
	return v.ta.Transfer(sw.resume)
}

// affinitySwitch lives between one suspension and the resumption that
// follows it. It holds the checked-out context and the real
// continuation.
type affinitySwitch struct {
	ex  Executor
	ctx Context
	k   func()
}

func checkoutSwitch(ex Executor, k func()) *affinitySwitch {
	return &affinitySwitch{ex: ex, ctx: Checkout(ex), k: k}
}

// resume is the substitute continuation handed to the foreign
// awaiter. It may run on any goroutine.
func (s *affinitySwitch) resume() {
	s.checkin(s.k)
}

func (s *affinitySwitch) checkin(fn func()) {
	if !s.dispatch(fn) {
		// A rejected checkin would strand the task forever; resume it
		// where we are instead.
		fn()
	}
}

// dispatch hands fn to the checked-out context. Panics raised by the
// executor's own bookkeeping are reported as runtime defects. Once fn
// has started, whatever it raises belongs to the caller and passes
// through untouched, even when the executor ran fn synchronously.
func (s *affinitySwitch) dispatch(fn func()) bool {
	var entered atomic.Bool
	defer func() {
		if entered.Load() {
			return
		}
		if p := recover(); p != nil {
			panic(fmt.Sprintf("futurelite: panic in executor affinity switch on %s: %v", s.ex.Name(), p))
		}
	}()

	return Checkin(s.ex, func() {
		entered.Store(true)
		fn()
	}, s.ctx, ScheduleOptions{})
}

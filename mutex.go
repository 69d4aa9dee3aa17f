package futurelite

import (
	"sync/atomic"
)

// Mutex provides mutual exclusion for task chains. A contended Lock
// parks the caller instead of blocking its goroutine. The zero value
// is an unlocked mutex.
//
// The whole state is one atomic pointer with three meanings: nil is
// unlocked, mutexLocked is locked with no waiters, anything else is
// the head of a list of waiters in most-recent-first order. The holder
// owns a second, non-atomic list: the waiters of the current drain in
// arrival order. Unlock pops that list without touching the atomic
// word and only reverses a fresh batch from the atomic list once it
// runs dry.
//
// Waiters are resumed in arrival order once a drain has begun. A
// TryLock that races an Unlock which finds no queued waiters can take
// the lock ahead of waiters that arrive at the same instant.
type Mutex struct {
	noCopy  noCopy
	state   atomic.Pointer[lockWaiter]
	waiters *lockWaiter // holder-owned, FIFO
}

// lockWaiter is the waiter node. It is the awaiter itself, owned by
// the caller of Lock for the duration of one suspension; the mutex only
// links it.
type lockWaiter struct {
	m      *Mutex
	next   *lockWaiter
	resume func()
}

var mutexLocked lockWaiter

// TryLock acquires the mutex if it is unlocked and reports whether it
// did.
func (m *Mutex) TryLock() bool {
	return m.state.CompareAndSwap(nil, &mutexLocked)
}

// Lock acquires the mutex, suspending s while it is held elsewhere.
func (m *Mutex) Lock(s Suspender) {
	s.Await(&lockWaiter{m: m})
}

func (w *lockWaiter) Ready() bool {
	return w.m.TryLock()
}

func (w *lockWaiter) Suspend(k func()) bool {
	w.resume = k

	m := w.m
	old := m.state.Load()
	for {
		if old == nil {
			if m.state.CompareAndSwap(nil, &mutexLocked) {
				return false
			}
		} else {
			if old == &mutexLocked {
				w.next = nil
			} else {
				w.next = old
			}
			if m.state.CompareAndSwap(old, w) {
				return true
			}
		}
		old = m.state.Load()
	}
}

// Unlock releases the mutex, handing it directly to the next waiter if
// there is one. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	head := m.waiters
	if head == nil {
		old := m.state.Load()
		if old == nil {
			panic("futurelite: unlock of unlocked mutex")
		}

		if old == &mutexLocked && m.state.CompareAndSwap(old, nil) {
			return
		}

		// New waiters queued since the last drain. Take them all and
		// reverse them into arrival order; the mutex stays locked on
		// behalf of the first one.
		old = m.state.Swap(&mutexLocked)
		for old != nil {
			next := old.next
			old.next = head
			head = old
			old = next
		}
	}

	m.waiters = head.next
	head.next = nil
	head.resume()
}

// Locked reports whether the mutex is currently held. The answer may
// be stale by the time it is returned.
func (m *Mutex) Locked() bool {
	return m.state.Load() != nil
}

package futurelite

import (
	"github.com/gammazero/deque"
)

// Barrier is a rendezvous point for a fixed number of task chains.
// Each Wait parks its caller until count callers have arrived, then
// all of them are released together, in no particular order.
//
// A Barrier of count 0 never blocks. It is meant for a single wave:
// the buffer is emptied on release, but nothing stops a late arrival
// from joining the next wave.
type Barrier struct {
	noCopy  noCopy
	count   int
	mu      Mutex
	waiters deque.Deque[func()] // guarded by mu
}

// NewBarrier creates a barrier for count participants.
func NewBarrier(count int) *Barrier {
	if count < 0 {
		panic("futurelite: negative barrier count")
	}
	return &Barrier{count: count}
}

// Wait parks s until count participants have called Wait.
func (b *Barrier) Wait(s Suspender) {
	b.mu.Lock(s)
	s.Await(&barrierWaiter{b: b})
}

type barrierWaiter struct {
	b *Barrier
}

func (w *barrierWaiter) Ready() bool { return false }

// Suspend runs with the barrier's mutex held by the caller and releases
// it once the caller is buffered or the wave is released.
func (w *barrierWaiter) Suspend(k func()) bool {
	b := w.b
	b.waiters.PushBack(k)

	if b.waiters.Len() < b.count {
		b.mu.Unlock()
		return true
	}

	// The last arrival releases everybody else and continues itself
	// without parking.
	for b.waiters.Len() > 1 {
		b.waiters.PopFront()()
	}
	b.waiters.Clear()
	b.mu.Unlock()
	return false
}

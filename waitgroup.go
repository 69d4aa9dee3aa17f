package futurelite

import (
	"sync"

	"github.com/gammazero/deque"
)

// WaitGroup waits for a collection of task chains to finish. Add(1)
// before starting each one, Done when it finishes, and Wait parks the
// caller until the counter drops to zero.
type WaitGroup struct {
	noCopy  noCopy
	mu      sync.Mutex
	v       int64
	waiters deque.Deque[func()]
}

// Add adds delta to the counter. When the counter reaches zero every
// parked waiter is resumed. A negative counter panics.
func (wg *WaitGroup) Add(delta int) {
	wg.mu.Lock()
	wg.v += int64(delta)

	if wg.v < 0 {
		wg.mu.Unlock()
		panic("futurelite: negative WaitGroup counter")
	}

	if wg.v > 0 || wg.waiters.Len() == 0 {
		wg.mu.Unlock()
		return
	}

	ks := make([]func(), 0, wg.waiters.Len())
	for wg.waiters.Len() > 0 {
		ks = append(ks, wg.waiters.PopFront())
	}
	wg.mu.Unlock()

	for _, k := range ks {
		k()
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Wait parks s until the counter is zero. It returns immediately if
// it already is.
func (wg *WaitGroup) Wait(s Suspender) {
	s.Await(&waitGroupWaiter{wg: wg})
}

type waitGroupWaiter struct {
	wg *WaitGroup
}

func (w *waitGroupWaiter) Ready() bool {
	w.wg.mu.Lock()
	defer w.wg.mu.Unlock()
	return w.wg.v == 0
}

func (w *waitGroupWaiter) Suspend(k func()) bool {
	w.wg.mu.Lock()
	defer w.wg.mu.Unlock()

	if w.wg.v == 0 {
		return false
	}
	w.wg.waiters.PushBack(k)
	return true
}

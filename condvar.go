package futurelite

import (
	"sync"

	"github.com/gammazero/deque"
)

// CondVar is a condition variable for task chains, used together with
// a Mutex.
type CondVar struct {
	noCopy  noCopy
	mu      sync.Mutex
	waiters deque.Deque[func()]
}

// Wait must be called with m held by s. While pred is false it
// atomically releases m and parks s until notified, then re-acquires m
// and checks pred again. It returns with m held and pred true.
func (c *CondVar) Wait(s Suspender, m *Mutex, pred func() bool) {
	for !pred() {
		s.Await(&condWaiter{c: c, m: m})
		m.Lock(s)
	}
}

type condWaiter struct {
	c *CondVar
	m *Mutex
}

func (w *condWaiter) Ready() bool { return false }

// Suspend queues the caller before releasing the mutex, so a notifier
// that takes the mutex afterwards always finds it.
func (w *condWaiter) Suspend(k func()) bool {
	w.c.mu.Lock()
	w.c.waiters.PushBack(k)
	w.c.mu.Unlock()

	w.m.Unlock()
	return true
}

// Notify resumes the longest waiting caller, if any.
func (c *CondVar) Notify() {
	c.mu.Lock()
	if c.waiters.Len() == 0 {
		c.mu.Unlock()
		return
	}
	k := c.waiters.PopFront()
	c.mu.Unlock()

	k()
}

// NotifyAll resumes every waiting caller.
func (c *CondVar) NotifyAll() {
	c.mu.Lock()
	ks := make([]func(), 0, c.waiters.Len())
	for c.waiters.Len() > 0 {
		ks = append(ks, c.waiters.PopFront())
	}
	c.mu.Unlock()

	for _, k := range ks {
		k()
	}
}

package futurelite

// Semaphore is a counting semaphore for task chains, built on a Mutex
// and a CondVar. Waits cannot time out.
type Semaphore struct {
	noCopy noCopy
	mu     Mutex
	cv     CondVar
	count  int64
}

// NewSemaphore creates a semaphore holding count permits.
func NewSemaphore(count int64) *Semaphore {
	if count < 0 {
		panic("futurelite: negative semaphore count")
	}
	return &Semaphore{count: count}
}

// Signal returns one permit and wakes one waiter.
func (s *Semaphore) Signal(su Suspender) {
	s.mu.Lock(su)
	s.count++
	s.mu.Unlock()

	s.cv.Notify()
}

// Wait takes one permit, suspending su while none is available.
func (s *Semaphore) Wait(su Suspender) {
	s.mu.Lock(su)
	s.cv.Wait(su, &s.mu, func() bool { return s.count > 0 })
	s.count--
	s.mu.Unlock()
}

// TryWait takes a permit only if one is available without suspending.
// It may fail spuriously while another caller holds the semaphore's
// internal lock.
func (s *Semaphore) TryWait() bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

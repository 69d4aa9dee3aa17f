package futurelite

import "sync"

// flight is one execution of a SingleFlight function. Callers that
// join it park on done and read the result afterwards.
type flight struct {
	done    WaitGroup
	val     any
	err     error
	waiters int
}

// SingleFlight coalesces concurrent calls with the same key. The first
// caller for a key becomes the leader and runs fn; callers that arrive
// while it is running park until the leader finishes and receive its
// result. The zero value is ready to use.
type SingleFlight struct {
	mu       sync.Mutex
	inflight map[any]*flight
}

// Do runs fn once per key among concurrent callers. shared reports
// whether the result went to more than one caller, and is true for the
// leader as well as the waiters in that case.
func (g *SingleFlight) Do(s Suspender, key any, fn func() (any, error)) (v any, err error, shared bool) {
	f, leader := g.join(key)
	if !leader {
		f.done.Wait(s)
		return f.val, f.err, true
	}

	g.lead(key, f, fn)

	g.mu.Lock()
	shared = f.waiters > 0
	g.mu.Unlock()
	return f.val, f.err, shared
}

// Forget drops key so that the next Do starts a new flight even if the
// current one is still running. Callers already waiting keep waiting
// on the old flight.
func (g *SingleFlight) Forget(key any) {
	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
}

// join returns the flight for key, starting a new one when there is
// none. leader is true for the caller that must run it.
func (g *SingleFlight) join(key any) (f *flight, leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if f, ok := g.inflight[key]; ok {
		f.waiters++
		return f, false
	}
	if g.inflight == nil {
		g.inflight = make(map[any]*flight)
	}
	f = new(flight)
	f.done.Add(1)
	g.inflight[key] = f
	return f, true
}

// lead runs fn for f. Waiters are released even when fn panics.
func (g *SingleFlight) lead(key any, f *flight, fn func() (any, error)) {
	defer func() {
		g.mu.Lock()
		if g.inflight[key] == f {
			delete(g.inflight, key)
		}
		g.mu.Unlock()
		f.done.Done()
	}()

	f.val, f.err = fn()
}

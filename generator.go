package futurelite

import (
	"context"
	"iter"
	"sync"
)

// Producer is the body of a Generator. It calls yield once per
// element; yield parks the producer until the consumer asks for the
// next element. Returning ends the sequence, and a non-nil error is
// handed to the consumer when it finds the sequence exhausted.
type Producer[R any] func(ctx context.Context, t *Task, yield func(R)) error

type generatorState int

const (
	generatorIdle     generatorState = iota // not started
	generatorRunning                        // producing the next element
	generatorYielded                        // parked at yield, slot full
	generatorDone                           // producer returned
)

// Generator is a pull-based asynchronous sequence with a single
// consumer. Each Next resumes the producer on the consumer's executor
// and parks the consumer until the producer yields or returns.
//
// R is the reference type the consumer observes; it may alias storage
// owned by the producer and is only valid until the following Next.
// V is the owned form of an element, obtained through NextValue or
// Collect, for callers that keep elements around.
//
// The current element lives in a single slot. It is released (see
// WithRelease) right before the producer is resumed for the next one,
// and by Close.
type Generator[R, V any] struct {
	noCopy  noCopy
	ctx     context.Context
	fn      Producer[R]
	own     func(R) V
	release func(R)
	task    *Task

	mu     sync.Mutex
	state  generatorState
	slot   R
	full   bool
	err    error
	waiter func()
	closed bool
}

// GeneratorOption configures a Generator.
type GeneratorOption[R any] func(*generatorConfig[R])

type generatorConfig[R any] struct {
	release func(R)
}

// WithRelease registers fn to be called on every element when it
// leaves the slot, either because the consumer moved on or because the
// generator was closed.
func WithRelease[R any](fn func(R)) GeneratorOption[R] {
	return func(c *generatorConfig[R]) {
		c.release = fn
	}
}

// NewGenerator creates a generator whose owned and reference types
// coincide.
func NewGenerator[R any](ctx context.Context, fn Producer[R], options ...GeneratorOption[R]) *Generator[R, R] {
	return NewGeneratorOf(ctx, fn, func(r R) R { return r }, options...)
}

// NewGeneratorOf creates a generator that converts elements to their
// owned form with own.
func NewGeneratorOf[R, V any](
	ctx context.Context,
	fn Producer[R],
	own func(R) V,
	options ...GeneratorOption[R],
) *Generator[R, V] {
	var cfg generatorConfig[R]
	for _, opt := range options {
		opt(&cfg)
	}

	return &Generator[R, V]{
		ctx:     ctx,
		fn:      fn,
		own:     own,
		release: cfg.release,
	}
}

// Next resumes the producer and parks s until it yields. ok is false
// once the sequence is exhausted; err is the producer's failure, and
// is reported exactly once, by the first Next that finds the sequence
// exhausted. The returned reference is valid until the next call to
// Next or Close.
//
// Next must not be called concurrently.
func (g *Generator[R, V]) Next(s Suspender) (ref R, ok bool, err error) {
	var zero R

	g.mu.Lock()
	switch {
	case g.closed:
		g.mu.Unlock()
		return zero, false, ErrClosed
	case g.state == generatorRunning:
		g.mu.Unlock()
		panic("futurelite: concurrent Generator.Next")
	case g.state == generatorDone:
		err = g.err
		g.err = nil
		g.mu.Unlock()
		return zero, false, err
	}

	g.clearLocked()
	g.state = generatorRunning
	g.mu.Unlock()

	s.Await(&generatorNext[R, V]{g: g, ex: s.Executor()})

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == generatorYielded {
		return g.slot, true, nil
	}

	err = g.err
	g.err = nil
	return zero, false, err
}

// NextValue is Next returning an owned copy of the element.
func (g *Generator[R, V]) NextValue(s Suspender) (V, bool, error) {
	r, ok, err := g.Next(s)
	if !ok {
		var zero V
		return zero, false, err
	}
	return g.own(r), true, nil
}

// Collect drains the generator into owned values.
func (g *Generator[R, V]) Collect(s Suspender) ([]V, error) {
	var vs []V
	for {
		v, ok, err := g.NextValue(s)
		if err != nil {
			return vs, err
		}
		if !ok {
			return vs, nil
		}
		vs = append(vs, v)
	}
}

// All returns an iterator over the remaining elements. A producer
// failure is delivered as the final pair.
func (g *Generator[R, V]) All(s Suspender) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		for {
			r, ok, err := g.Next(s)
			if err != nil {
				yield(r, err)
				return
			}
			if !ok || !yield(r, nil) {
				return
			}
		}
	}
}

// Close releases the current element and destroys the producer. It
// must not be called while a Next is in progress. Close is idempotent.
func (g *Generator[R, V]) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if g.state == generatorRunning {
		g.mu.Unlock()
		panic("futurelite: generator closed while producing")
	}

	g.closed = true
	g.clearLocked()
	t, parked := g.task, g.state == generatorYielded
	g.mu.Unlock()

	if t != nil && parked {
		t.abandon()
	}
}

func (g *Generator[R, V]) clearLocked() {
	if !g.full {
		return
	}
	if g.release != nil {
		g.release(g.slot)
	}

	var zero R
	g.slot = zero
	g.full = false
}

func (g *Generator[R, V]) produce(ctx context.Context, t *Task) {
	err := g.fn(ctx, t, func(r R) {
		g.mu.Lock()
		g.slot = r
		g.full = true
		g.mu.Unlock()

		t.Await(&generatorYield[R, V]{g: g})
	})

	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *Generator[R, V]) finish(err error) {
	g.mu.Lock()
	if err != nil {
		g.err = err
	}
	g.state = generatorDone
	w := g.waiter
	g.waiter = nil
	g.mu.Unlock()

	if w != nil {
		w()
	}
}

// generatorNext resumes the producer on the consumer's driving
// goroutine and parks the consumer if the producer itself parks on
// something else before yielding.
type generatorNext[R, V any] struct {
	g  *Generator[R, V]
	ex Executor
}

func (a *generatorNext[R, V]) Ready() bool { return false }

func (a *generatorNext[R, V]) Suspend(k func()) bool {
	g := a.g

	// The producer is parked here, so its executor can be swapped for
	// the one of the current consumer.
	if g.task == nil {
		g.task = newTask(g.ctx, a.ex, g.produce, g.finish)
	} else {
		g.task.ex = a.ex
	}
	g.task.step()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != generatorRunning {
		return false
	}
	g.waiter = k
	return true
}

// generatorYield parks the producer and hands control back to a
// consumer that is waiting for it.
type generatorYield[R, V any] struct {
	g *Generator[R, V]
}

func (a *generatorYield[R, V]) Ready() bool { return false }

func (a *generatorYield[R, V]) Suspend(func()) bool {
	g := a.g

	g.mu.Lock()
	g.state = generatorYielded
	w := g.waiter
	g.waiter = nil
	g.mu.Unlock()

	if w != nil {
		w()
	}
	return true
}

// The producer is only ever resumed by the next call to Next, never
// by a foreign goroutine.
func (a *generatorYield[R, V]) resumesOn(Executor) bool { return true }

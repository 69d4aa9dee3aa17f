package futurelite

import (
	"context"
	"sync"
)

// Group runs task bodies concurrently on an executor and collects the
// first error. The first failure cancels the group's context; bodies
// observe it cooperatively.
type Group struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	ex     Executor
	wg     WaitGroup
	once   sync.Once
	err    error
}

// NewGroup creates a group whose bodies run on ex (inline when ex is
// nil) with a context derived from ctx.
func NewGroup(ctx context.Context, ex Executor) *Group {
	ctx, cancel := context.WithCancelCause(ctx)
	return &Group{ctx: ctx, cancel: cancel, ex: ex}
}

// Context returns the context handed to every body.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go starts fn as a detached task. A rejected start counts as a
// failure of the group.
func (g *Group) Go(fn func(context.Context, *Task) error) {
	g.wg.Add(1)

	l := NewLazy(func(ctx context.Context, t *Task) (struct{}, error) {
		return struct{}{}, fn(ctx, t)
	})
	l.Via(g.ex).Start(g.ctx, func(r Try[struct{}]) {
		defer g.wg.Done()
		if err := r.Err(); err != nil {
			g.once.Do(func() {
				g.err = err
				g.cancel(err)
			})
		}
	})
}

// Wait parks s until every body has finished and returns the first
// error.
func (g *Group) Wait(s Suspender) error {
	g.wg.Wait(s)
	g.cancel(g.err)
	return g.err
}

// CollectAll starts every computation, parks s until all of them have
// finished and returns their results in order. Unbound computations
// run on the executor of s.
func CollectAll[T any](s Suspender, lazies ...*Lazy[T]) []Try[T] {
	results := make([]Try[T], len(lazies))

	var wg WaitGroup
	wg.Add(len(lazies))

	for i, l := range lazies {
		if l.Executor() == nil {
			l.Via(s.Executor())
		}
		l.Start(s.Context(), func(r Try[T]) {
			results[i] = r
			wg.Done()
		})
	}

	wg.Wait(s)
	return results
}

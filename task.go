package futurelite

import (
	"context"
	"fmt"
	"runtime/trace"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/webriots/coro"
)

const (
	taskTraceTaskType   = "futurelite-task"
	taskTraceRegionType = "futurelite-step"
	taskTraceCategory   = "futurelite"
)

// taskSeq numbers tasks in creation order for trace output.
var taskSeq atomic.Uint64

// Task is one task chain: a coroutine that runs a body, parks on
// Awaiters and is resumed by their continuations. A task is never
// concurrent with itself; each resumption runs on whichever goroutine
// invoked the continuation, which the affinity engine arranges to be
// one of the task's executor's goroutines.
type Task struct {
	ctx    context.Context
	ex     Executor
	parent *Task
	yield  func(Awaiter) struct{}
	resume func(struct{}) (Awaiter, bool)
	cancel func()
	done   func(error)
	tracer *trace.Task
	seq    uint64

	// body is the goroutine the coroutine runs on and driver the one
	// currently parked in resume, or 0 between steps.
	body   atomic.Uint64
	driver atomic.Uint64
}

// newTask creates a parked task that runs fn once driven. done is
// called on the driving goroutine when fn returns, with a *PanicError
// when fn panicked.
func newTask(
	ctx context.Context,
	ex Executor,
	fn func(context.Context, *Task),
	done func(error),
) *Task {
	task := &Task{ex: ex, done: done, seq: taskSeq.Add(1)}
	task.parent, _ = TaskFromContext(ctx)

	ctx, task.tracer = trace.NewTask(ctx, taskTraceTaskType)
	task.ctx = withTaskContext(ctx, task)

	resume, cancel := coro.New(
		func(yield func(Awaiter) struct{}, _ func() struct{}) (z Awaiter) {
			region := trace.StartRegion(task.ctx, taskTraceRegionType)
			defer region.End()

			task.body.Store(goroutineID())
			task.yield = yield
			fn(task.ctx, task)

			return
		},
	)

	task.resume = resume
	task.cancel = cancel
	return task
}

// Await parks the task until a resumes it. Awaiters that could resume
// the task on a foreign goroutine are routed through Via so that the
// task comes back on its own executor.
//
// Await must only be called from the task's own body.
func (t *Task) Await(a Awaiter) {
	a = t.transform(a)
	if a.Ready() {
		return
	}

	t.Log("AWAIT")
	t.yield(a)
}

func (t *Task) transform(a Awaiter) Awaiter {
	if t.ex == nil {
		return a
	}
	if af, ok := a.(affine); ok && af.resumesOn(t.ex) {
		return a
	}
	return Via(t.ex, a)
}

// Executor returns the executor the task resumes on, or nil when it
// resumes inline.
func (t *Task) Executor() Executor {
	return t.ex
}

// Context returns the task body's context. It carries the task, see
// TaskFromContext.
func (t *Task) Context() context.Context {
	return t.ctx
}

// step drives the coroutine until it parks or finishes. Suspend runs
// here, on the driving goroutine, once the coroutine is parked; after
// a successful Suspend the task may already be running elsewhere, so
// step must not touch it again.
func (t *Task) step() {
	t.driver.Store(goroutineID())
	t.Log("STEP")

	for {
		a, ok, err := t.resumeOnce()
		if !ok {
			t.finish(err)
			return
		}

		t.driver.Store(0)

		if ta, ok := a.(TransferAwaiter); ok {
			if next := ta.Transfer(t.step); next != nil {
				next()
			}
			return
		}

		if a.Suspend(t.step) {
			return
		}

		t.driver.Store(goroutineID())
	}
}

// resumeOnce runs the coroutine up to its next suspension point. A
// panic escaping the body surfaces here and ends the task.
func (t *Task) resumeOnce() (a Awaiter, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			a, ok, err = nil, false, newPanicError(p)
		}
	}()

	a, ok = t.resume(struct{}{})
	return a, ok, nil
}

func (t *Task) finish(err error) {
	t.driver.Store(0)
	t.Log("DONE")
	t.tracer.End()
	t.cancel()

	if t.done != nil {
		t.done(err)
	}
}

// abandon destroys a task parked at a suspension point without running
// it to completion. done is not called.
func (t *Task) abandon() {
	t.Log("ABANDON")
	t.tracer.End()
	t.cancel()
}

// Log records msg on the execution trace, prefixed with the task's
// lineage, when tracing is enabled.
func (t *Task) Log(msg string) {
	if trace.IsEnabled() {
		trace.Log(t.ctx, taskTraceCategory, t.lineage()+" "+msg)
	}
}

// Logf is like Log with formatting.
func (t *Task) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		t.Log(fmt.Sprintf(format, args...))
	}
}

// lineage names the task by its sequence number and those of its
// ancestors, outermost first, e.g. "1/4/9".
func (t *Task) lineage() string {
	var seqs []string
	for p := t; p != nil; p = p.parent {
		seqs = append(seqs, strconv.FormatUint(p.seq, 10))
	}
	slices.Reverse(seqs)
	return strings.Join(seqs, "/")
}

package futurelite

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fogfish/opts"
)

// TaskManager runs named, repeating background tasks on an executor.
// A name maps to at most one active loop.
//
// Cancellation is cooperative: a loop notices that it was deleted only
// when it wakes up and checks its running flag, so a sleep that is
// already in progress always runs to completion.
type TaskManager struct {
	ex     Executor
	logger *slog.Logger
	mu     Mutex
	tasks  map[string]*repeatedTask // guarded by mu
	active atomic.Int64
}

type repeatedTask struct {
	name    string
	running atomic.Bool
	mu      Mutex // held for the duration of each iteration
}

// WithTaskLogger sets the logger failed loops are reported to.
var WithTaskLogger = opts.ForName[TaskManager, *slog.Logger]("logger")

// NewTaskManager creates a manager whose loops run on ex.
func NewTaskManager(ex Executor, options ...opts.Option[TaskManager]) *TaskManager {
	m := &TaskManager{
		ex:     ex,
		logger: slog.Default(),
		tasks:  make(map[string]*repeatedTask),
	}
	if err := opts.Apply(m, options); err != nil {
		panic(err)
	}
	return m
}

// Fn adapts a synchronous body to the signature AddRepeatedTask takes.
func Fn(fn func(context.Context)) func(context.Context, *Task) {
	return func(ctx context.Context, _ *Task) { fn(ctx) }
}

// AddRepeatedTask starts a loop that runs fn, then sleeps for
// interval, until the task is deleted. The body may suspend through
// its Task. It returns false, starting nothing, when name is already
// registered or the executor rejects the loop.
func (m *TaskManager) AddRepeatedTask(
	s Suspender,
	name string,
	fn func(context.Context, *Task),
	interval time.Duration,
) bool {
	m.mu.Lock(s)
	defer m.mu.Unlock()

	if _, ok := m.tasks[name]; ok {
		return false
	}

	rt := &repeatedTask{name: name}
	rt.running.Store(true)
	m.tasks[name] = rt
	m.active.Add(1)

	rejected := false
	loop := NewLazy(func(_ context.Context, t *Task) (struct{}, error) {
		m.loop(t, rt, fn, interval)
		return struct{}{}, nil
	})
	loop.Via(m.ex).Start(context.WithoutCancel(s.Context()), func(r Try[struct{}]) {
		err := r.Err()
		switch {
		case errors.Is(err, ErrRejected):
			rejected = true
			m.active.Add(-1)
		case err != nil:
			m.logger.Error("repeated task stopped", slog.String("task", name), slog.String("error", err.Error()))
		}
	})

	if rejected {
		delete(m.tasks, name)
		return false
	}
	return true
}

func (m *TaskManager) loop(t *Task, rt *repeatedTask, fn func(context.Context, *Task), interval time.Duration) {
	defer m.active.Add(-1)

	for rt.running.Load() {
		if !m.runOnce(t, rt, fn) {
			return
		}

		if !Sleep(t, interval) {
			m.logger.Warn("repeated task stopped: executor rejected timer",
				slog.String("task", rt.name), slog.String("executor", m.ex.Name()))
			m.forget(t, rt)
			return
		}
	}
}

// runOnce runs one iteration under the task's lock, so that a
// waiting delete sees either no iteration or a complete one.
func (m *TaskManager) runOnce(t *Task, rt *repeatedTask, fn func(context.Context, *Task)) bool {
	rt.mu.Lock(t)
	defer rt.mu.Unlock()

	// Deleted while we were waiting for the lock.
	if !rt.running.Load() {
		return false
	}

	t.Logf("ITERATION %s", rt.name)
	fn(t.Context(), t)
	return true
}

func (m *TaskManager) forget(s Suspender, rt *repeatedTask) {
	m.mu.Lock(s)
	defer m.mu.Unlock()

	if m.tasks[rt.name] == rt {
		delete(m.tasks, rt.name)
	}
}

// DeleteRepeatedTask removes name, freeing it for reuse immediately,
// and stops its loop. With waitFinish it first waits for an iteration
// in flight to complete; without it one more iteration may still run.
// Either way a sleep already in progress is not interrupted.
func (m *TaskManager) DeleteRepeatedTask(s Suspender, name string, waitFinish bool) {
	m.mu.Lock(s)
	rt, ok := m.tasks[name]
	delete(m.tasks, name)
	m.mu.Unlock()

	if !ok {
		return
	}

	if !waitFinish {
		rt.running.Store(false)
		return
	}

	rt.mu.Lock(s)
	rt.running.Store(false)
	rt.mu.Unlock()
}

// DeleteAll deletes every registered task.
func (m *TaskManager) DeleteAll(s Suspender, waitFinish bool) {
	m.mu.Lock(s)
	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.DeleteRepeatedTask(s, name, waitFinish)
	}
}

// ActiveRepeatedTasks counts loops that have not exited yet. Loops
// decrement it themselves when they notice they were deleted, so it
// lags behind DeleteRepeatedTask.
func (m *TaskManager) ActiveRepeatedTasks() int {
	return int(m.active.Load())
}

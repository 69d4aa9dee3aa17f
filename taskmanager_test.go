package futurelite

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func quietTaskManager(ex Executor) *TaskManager {
	return NewTaskManager(ex, WithTaskLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestTaskManagerDuplicateName(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	m := quietTaskManager(ex)
	s := Blocking(context.Background())

	var n atomic.Int32
	body := Fn(func(context.Context) { n.Add(1) })

	r.True(m.AddRepeatedTask(s, "a", body, time.Millisecond))
	r.False(m.AddRepeatedTask(s, "a", body, time.Millisecond))
	r.True(m.AddRepeatedTask(s, "b", body, time.Millisecond))
	r.Eventually(func() bool { return n.Load() > 4 }, time.Second, time.Millisecond)

	// Deleting frees the name right away.
	m.DeleteRepeatedTask(s, "a", false)
	r.True(m.AddRepeatedTask(s, "a", body, time.Millisecond))

	m.DeleteAll(s, true)
	r.Eventually(func() bool { return m.ActiveRepeatedTasks() == 0 }, time.Second, time.Millisecond)

	// Unknown names are ignored.
	m.DeleteRepeatedTask(s, "missing", true)
	ex.wg.Wait()
}

func TestTaskManagerDeleteWaitsForIteration(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	m := quietTaskManager(ex)
	s := Blocking(context.Background())

	var (
		started    atomic.Bool
		inFlight   atomic.Int32
		iterations atomic.Int32
	)
	r.True(m.AddRepeatedTask(s, "slow", func(_ context.Context, task *Task) {
		inFlight.Add(1)
		started.Store(true)
		Sleep(task, 50*time.Millisecond)
		iterations.Add(1)
		inFlight.Add(-1)
	}, 5*time.Millisecond))

	r.Eventually(started.Load, time.Second, time.Millisecond)
	m.DeleteRepeatedTask(s, "slow", true)
	r.Zero(inFlight.Load())

	// No iteration starts after a waiting delete returned.
	n := iterations.Load()
	r.Eventually(func() bool { return m.ActiveRepeatedTasks() == 0 }, time.Second, time.Millisecond)
	r.Equal(n, iterations.Load())
	ex.wg.Wait()
}

func TestTaskManagerRejected(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	ex.reject.Store(true)
	m := quietTaskManager(ex)
	s := Blocking(context.Background())

	r.False(m.AddRepeatedTask(s, "a", Fn(func(context.Context) {}), time.Millisecond))
	r.Zero(m.ActiveRepeatedTasks())

	// The name was not kept.
	ex.reject.Store(false)
	r.True(m.AddRepeatedTask(s, "a", Fn(func(context.Context) {}), time.Millisecond))
	m.DeleteAll(s, true)
	r.Eventually(func() bool { return m.ActiveRepeatedTasks() == 0 }, time.Second, time.Millisecond)
	ex.wg.Wait()
}

func TestTaskManagerPanickingBody(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	m := quietTaskManager(ex)
	s := Blocking(context.Background())

	var n atomic.Int32
	r.True(m.AddRepeatedTask(s, "panics", Fn(func(context.Context) {
		n.Add(1)
		panic("body")
	}), time.Millisecond))

	r.Eventually(func() bool { return m.ActiveRepeatedTasks() == 0 }, time.Second, time.Millisecond)
	r.EqualValues(1, n.Load())

	// The per-task lock was released, so a waiting delete returns.
	m.DeleteRepeatedTask(s, "panics", true)
	ex.wg.Wait()
}

func TestTaskManagerFromTask(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	m := quietTaskManager(ex)

	var n atomic.Int32
	_, err := NewLazy(func(_ context.Context, task *Task) (struct{}, error) {
		r.True(m.AddRepeatedTask(task, "tick", Fn(func(context.Context) { n.Add(1) }), time.Millisecond))
		for n.Load() < 3 {
			Sleep(task, time.Millisecond)
		}
		m.DeleteRepeatedTask(task, "tick", true)
		return struct{}{}, nil
	}).Via(ex).Get(context.Background())
	r.NoError(err)

	r.Eventually(func() bool { return m.ActiveRepeatedTasks() == 0 }, time.Second, time.Millisecond)
	ex.wg.Wait()
}

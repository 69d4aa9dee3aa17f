package futurelite

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type transferAwaiter struct {
	transfers atomic.Int32
}

func (a *transferAwaiter) Ready() bool { return false }

func (a *transferAwaiter) Suspend(k func()) bool {
	go k()
	return true
}

func (a *transferAwaiter) Transfer(k func()) func() {
	a.transfers.Add(1)
	return func() { go k() }
}

// syncExecutor runs scheduled functions on the calling goroutine.
type syncExecutor struct {
	reject atomic.Bool
	broken atomic.Bool
}

func (e *syncExecutor) Name() string { return "sync" }

func (e *syncExecutor) Schedule(fn func()) bool {
	if e.broken.Load() {
		panic("queue")
	}
	if e.reject.Load() {
		return false
	}
	fn()
	return true
}

func (e *syncExecutor) CallLater(fn func(), d time.Duration) TimerHandle {
	return goTimer{t: time.AfterFunc(d, func() { e.Schedule(fn) })}
}

func (e *syncExecutor) CurrentThreadInExecutor(context.Context) bool { return false }

// parkOnCallback starts a task on ex that waits for the returned
// callback and then reports its result to done.
func parkOnCallback(ex Executor, done func(Try[int])) func(int, error) {
	var release func(int, error)
	NewLazy(func(_ context.Context, task *Task) (int, error) {
		return AwaitCallback(task, func(cb func(int, error)) { release = cb })
	}).Via(ex).Start(context.Background(), done)
	return release
}

func TestViaNilExecutor(t *testing.T) {
	r := require.New(t)

	a := new(transferAwaiter)
	r.Same(a, Via(nil, a))
}

func TestAffinityForeignCompletion(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	ctx := context.Background()

	v, err := NewLazy(func(ctx context.Context, task *Task) (int, error) {
		r.True(ex.CurrentThreadInExecutor(ctx))

		v, err := AwaitCallback(task, func(cb func(int, error)) {
			go func() {
				time.Sleep(time.Millisecond)
				cb(42, nil)
			}()
		})

		r.True(ex.CurrentThreadInExecutor(ctx))
		r.EqualValues(7, ContextID(ctx, ex))
		return v, err
	}).Via(ex).Get(ctx)

	r.NoError(err)
	r.Equal(42, v)
	r.EqualValues(1, ex.checkouts.Load())
	r.EqualValues(1, ex.checkins.Load())
	ex.wg.Wait()
}

func TestAffinitySynchronousCompletion(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)

	_, err := NewLazy(func(ctx context.Context, task *Task) (struct{}, error) {
		before := GoroutineID(ctx)

		// The callback fires inside Suspend, so the task never parks.
		_, err := AwaitCallback(task, func(cb func(struct{}, error)) {
			cb(struct{}{}, errors.New("sync"))
		})
		r.EqualError(err, "sync")

		r.Equal(before, GoroutineID(ctx))
		return struct{}{}, nil
	}).Via(ex).Get(context.Background())
	r.NoError(err)

	// The checkout was still paired with a checkin.
	r.EqualValues(1, ex.checkouts.Load())
	r.EqualValues(1, ex.checkins.Load())
	ex.wg.Wait()
}

func TestAffinityTransfer(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	a := new(transferAwaiter)

	_, err := NewLazy(func(ctx context.Context, task *Task) (struct{}, error) {
		task.Await(a)
		r.True(ex.CurrentThreadInExecutor(ctx))
		return struct{}{}, nil
	}).Via(ex).Get(context.Background())
	r.NoError(err)

	r.EqualValues(1, a.transfers.Load())
	r.EqualValues(1, ex.checkins.Load())
	ex.wg.Wait()
}

func TestAffinityRejectedCheckinResumesInline(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)

	v, err := NewLazy(func(ctx context.Context, task *Task) (string, error) {
		ex.reject.Store(true)
		return AwaitCallback(task, func(cb func(string, error)) {
			go cb("late", nil)
		})
	}).Via(ex).Get(context.Background())

	r.NoError(err)
	r.Equal("late", v)
	r.EqualValues(1, ex.checkins.Load())
	ex.wg.Wait()
}

func TestAwaitCallbackBlocking(t *testing.T) {
	r := require.New(t)

	s := Blocking(context.Background())
	v, err := AwaitCallback(s, func(cb func(int, error)) {
		go func() {
			cb(1, nil)
			cb(2, nil)
		}()
	})
	r.NoError(err)
	r.Equal(1, v)
	r.Nil(s.Executor())
	r.NotNil(s.Context())
}

func TestAffinityCallerPanicPassesThrough(t *testing.T) {
	r := require.New(t)

	raise := func(Try[int]) { panic("user") }

	ex := new(syncExecutor)
	release := parkOnCallback(ex, raise)
	r.NotNil(release)
	r.PanicsWithValue("user", func() { release(1, nil) })

	// The rejected path resumes inline and must not rewrap either.
	ex = new(syncExecutor)
	release = parkOnCallback(ex, raise)
	ex.reject.Store(true)
	r.PanicsWithValue("user", func() { release(1, nil) })
}

func TestAffinityExecutorPanicIsReported(t *testing.T) {
	r := require.New(t)

	ex := new(syncExecutor)
	release := parkOnCallback(ex, nil)
	ex.broken.Store(true)
	r.PanicsWithValue("futurelite: panic in executor affinity switch on sync: queue", func() { release(1, nil) })
}

package futurelite

import (
	"context"
	"runtime"
)

// taskContextKey is a unique type used as a key for storing the
// running Task in a context.
type taskContextKey struct{}

// withTaskContext stores the task in ctx so that code running inside
// the task body can find its driver.
func withTaskContext(ctx context.Context, task *Task) context.Context {
	return context.WithValue(ctx, taskContextKey{}, task)
}

// TaskFromContext retrieves the Task whose body is running with ctx.
func TaskFromContext(ctx context.Context) (*Task, bool) {
	if ctx == nil {
		return nil, false
	}
	val, ok := ctx.Value(taskContextKey{}).(*Task)
	return val, ok
}

// MustTaskFromContext is like TaskFromContext but panics when ctx does
// not belong to a task body.
func MustTaskFromContext(ctx context.Context) *Task {
	val, ok := TaskFromContext(ctx)
	if !ok {
		panic("futurelite: task not found in context")
	}
	return val
}

// GoroutineID returns the identity of the goroutine that is logically
// running the caller. Task bodies execute on their own coroutine
// goroutine while the driver goroutine is parked inside resume, so a
// caller on the body goroutine of a task that is being driven gets the
// driver's id. Any other caller, including a goroutine the body spawned
// with the task's ctx, gets its own id.
//
// Executors use it to implement CurrentThreadInExecutor.
func GoroutineID(ctx context.Context) uint64 {
	id := goroutineID()
	if task, ok := TaskFromContext(ctx); ok && id == task.body.Load() {
		if driver := task.driver.Load(); driver != 0 {
			return driver
		}
	}
	return id
}

// goroutineID parses the current goroutine's id out of its stack
// header, which starts with "goroutine NNN [".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

package executor

import (
	"context"
	"time"

	"github.com/alphadose/haxmap"

	"github.com/webriots/futurelite"
)

// Inline runs scheduled work synchronously on the goroutine that
// schedules it. It has no sub-contexts. Delayed callbacks run on the
// timer's goroutine.
type Inline struct {
	name    string
	running *haxmap.Map[uint64, int] // goroutine id -> nesting depth
}

// NewInline creates an inline executor.
func NewInline(name string) *Inline {
	if name == "" {
		name = "inline"
	}
	return &Inline{name: name, running: haxmap.New[uint64, int]()}
}

// Name implements futurelite.Executor.
func (e *Inline) Name() string {
	return e.name
}

// Schedule runs fn before returning. It never rejects.
func (e *Inline) Schedule(fn func()) bool {
	id := futurelite.GoroutineID(context.Background())
	depth, _ := e.running.Get(id)
	e.running.Set(id, depth+1)
	defer func() {
		if depth == 0 {
			e.running.Del(id)
		} else {
			e.running.Set(id, depth)
		}
	}()

	fn()
	return true
}

// CallLater runs fn through Schedule after d.
func (e *Inline) CallLater(fn func(), d time.Duration) futurelite.TimerHandle {
	return &timer{t: time.AfterFunc(d, func() { e.Schedule(fn) })}
}

// CurrentThreadInExecutor reports whether the caller runs inside
// Schedule.
func (e *Inline) CurrentThreadInExecutor(ctx context.Context) bool {
	_, ok := e.running.Get(futurelite.GoroutineID(ctx))
	return ok
}

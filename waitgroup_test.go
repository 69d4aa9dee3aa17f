package futurelite

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitGroup(t *testing.T) {
	r := require.New(t)

	ex := new(goExecutor)
	ctx := context.Background()

	var (
		wg WaitGroup
		n  atomic.Int32
	)

	// Zero counter: no suspension.
	wg.Wait(Blocking(ctx))

	v, err := NewLazy(func(_ context.Context, task *Task) (int32, error) {
		for range 10 {
			wg.Add(1)
			NewLazy(func(_ context.Context, child *Task) (struct{}, error) {
				defer wg.Done()
				Sleep(child, time.Millisecond)
				n.Add(1)
				return struct{}{}, nil
			}).Via(ex).Start(ctx, nil)
		}
		wg.Wait(task)
		return n.Load(), nil
	}).Via(ex).Get(ctx)

	r.NoError(err)
	r.EqualValues(10, v)
	ex.wg.Wait()
}

func TestWaitGroupNegative(t *testing.T) {
	r := require.New(t)

	var wg WaitGroup
	r.Panics(func() { wg.Done() })
}

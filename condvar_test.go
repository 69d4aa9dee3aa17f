package futurelite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCondVar(t *testing.T) {
	r := require.New(t)

	var (
		mux   Mutex
		cv    CondVar
		ready bool
		woken []int
	)

	for i := range 3 {
		NewLazy(func(_ context.Context, task *Task) (struct{}, error) {
			mux.Lock(task)
			cv.Wait(task, &mux, func() bool { return ready })
			woken = append(woken, i)
			mux.Unlock()
			return struct{}{}, nil
		}).Start(context.Background(), nil)
	}

	// Everybody is parked and the mutex was released for them.
	r.False(mux.Locked())
	r.Empty(woken)

	// A spurious notification re-checks the predicate and parks again.
	cv.Notify()
	r.Empty(woken)

	s := Blocking(context.Background())
	mux.Lock(s)
	ready = true
	mux.Unlock()

	cv.Notify()
	r.Equal([]int{1}, woken)

	cv.NotifyAll()
	r.ElementsMatch([]int{1, 2, 0}, woken)
	r.False(mux.Locked())
}

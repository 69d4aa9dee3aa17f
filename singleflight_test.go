package futurelite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleFlight(t *testing.T) {
	r := require.New(t)

	var (
		sf      SingleFlight
		release func(string, error)
		calls   int
		results []any
		shares  int
	)

	for range 100 {
		NewLazy(func(_ context.Context, task *Task) (struct{}, error) {
			v, err, shared := sf.Do(task, "test-key", func() (any, error) {
				calls++
				return AwaitCallback(task, func(cb func(string, error)) { release = cb })
			})
			r.NoError(err)
			results = append(results, v)
			if shared {
				shares++
			}
			return struct{}{}, nil
		}).Start(context.Background(), nil)
	}

	r.Equal(1, calls)
	r.Empty(results)

	release("value", nil)

	r.Len(results, 100)
	for _, v := range results {
		r.Equal("value", v)
	}
	r.Equal(100, shares)

	// The key is forgotten once the call finished.
	v, err, shared := sf.Do(Blocking(context.Background()), "test-key", func() (any, error) {
		calls++
		return nil, errors.New("second")
	})
	r.Nil(v)
	r.EqualError(err, "second")
	r.False(shared)
	r.Equal(2, calls)
}

func TestSingleFlightForget(t *testing.T) {
	r := require.New(t)

	var (
		sf      SingleFlight
		release func(string, error)
		first   any
	)

	NewLazy(func(_ context.Context, task *Task) (struct{}, error) {
		first, _, _ = sf.Do(task, "key", func() (any, error) {
			return AwaitCallback(task, func(cb func(string, error)) { release = cb })
		})
		return struct{}{}, nil
	}).Start(context.Background(), nil)
	r.NotNil(release)

	// A forgotten key starts a fresh flight while the old one runs.
	sf.Forget("key")
	v, err, shared := sf.Do(Blocking(context.Background()), "key", func() (any, error) {
		return "fresh", nil
	})
	r.NoError(err)
	r.Equal("fresh", v)
	r.False(shared)

	release("stale", nil)
	r.Equal("stale", first)
}

package futurelite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// memIO serves reads and writes against an in-memory file, completing
// every operation on its own goroutine.
type memIO struct {
	data []byte
}

func (m *memIO) Submit(fd int, op IOOpcode, buf []byte, offset int64, cb IOCallback) {
	go func() {
		switch op {
		case IOPRead:
			cb(copy(buf, m.data[offset:]), nil)
		case IOPWrite:
			cb(copy(m.data[offset:], buf), nil)
		case IOPFsync:
			cb(0, nil)
		default:
			cb(0, errors.New("unsupported"))
		}
	}()
}

type ioExecutor struct {
	goExecutor
	io IOExecutor
}

func (e *ioExecutor) IOExecutor() IOExecutor { return e.io }

func TestAwaitIO(t *testing.T) {
	r := require.New(t)

	ex := &ioExecutor{io: &memIO{data: make([]byte, 16)}}

	got, err := NewLazy(func(ctx context.Context, task *Task) (string, error) {
		ioex := IOExecutorOf(task.Executor())

		n, err := AwaitIO(task, ioex, 3, IOPWrite, []byte("hello"), 4)
		if err != nil {
			return "", err
		}
		r.Equal(5, n)
		r.True(ex.CurrentThreadInExecutor(ctx))

		if _, err := AwaitIO(task, ioex, 3, IOPFsync, nil, 0); err != nil {
			return "", err
		}

		buf := make([]byte, 5)
		if _, err := AwaitIO(task, ioex, 3, IOPRead, buf, 4); err != nil {
			return "", err
		}
		return string(buf), nil
	}).Via(ex).Get(context.Background())

	r.NoError(err)
	r.Equal("hello", got)
	ex.wg.Wait()
}

func TestAwaitIOWithoutExecutor(t *testing.T) {
	r := require.New(t)

	_, err := AwaitIO(Blocking(context.Background()), nil, 3, IOPRead, nil, 0)
	r.ErrorIs(err, ErrNoIOExecutor)
	r.Equal("read", IOPRead.String())
	r.Equal("IOOpcode(9)", IOOpcode(9).String())
}

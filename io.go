package futurelite

import (
	"fmt"
)

// IOOpcode selects the operation submitted to an IOExecutor.
type IOOpcode int

const (
	IOPRead IOOpcode = iota
	IOPWrite
	IOPFsync
)

func (op IOOpcode) String() string {
	switch op {
	case IOPRead:
		return "read"
	case IOPWrite:
		return "write"
	case IOPFsync:
		return "fsync"
	default:
		return fmt.Sprintf("IOOpcode(%d)", int(op))
	}
}

// IOCallback receives the result of a submitted operation: the number
// of bytes transferred, or an error.
type IOCallback func(n int, err error)

// IOExecutor is an asynchronous I/O submission sink. Submit must not
// block on the operation itself; cb is invoked once, from any
// goroutine, when it completes. The length of the operation is
// len(buf).
type IOExecutor interface {
	Submit(fd int, op IOOpcode, buf []byte, offset int64, cb IOCallback)
}

// AwaitIO submits an operation to ioex and suspends s until it
// completes. A task resumes on its own executor, not on the goroutine
// that completed the operation.
func AwaitIO(s Suspender, ioex IOExecutor, fd int, op IOOpcode, buf []byte, offset int64) (int, error) {
	if ioex == nil {
		return 0, fmt.Errorf("futurelite: %s on fd %d: %w", op, fd, ErrNoIOExecutor)
	}

	return AwaitCallback(s, func(cb func(int, error)) {
		ioex.Submit(fd, op, buf, offset, IOCallback(cb))
	})
}

package futurelite

import (
	"errors"
	"fmt"
	"runtime"
)

// PanicError carries a panic recovered from a task body to whoever
// observes the task's completion.
type PanicError struct {
	// Value is the recovered value. A panic raised inside a task body
	// arrives wrapped by the coroutine runtime together with the
	// coroutine's stack; its DebugString method is used for Error.
	Value any

	// Stack is the stack of the goroutine that recovered the panic.
	Stack string
}

func (e *PanicError) Error() string {
	if ds, ok := e.Value.(interface{ DebugString() string }); ok {
		return fmt.Sprintf("futurelite: task panicked: %s", ds.DebugString())
	}
	return fmt.Sprintf("futurelite: task panicked: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// IsPanic reports whether err carries a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

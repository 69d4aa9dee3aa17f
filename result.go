package futurelite

// Try is the result channel of a finished computation: either a value
// or the error (possibly a *PanicError) the computation ended with.
// The zero Try holds no result.
type Try[T any] struct {
	val T
	err error
	ok  bool
}

// Success wraps v as a successful result.
func Success[T any](v T) Try[T] {
	return Try[T]{val: v, ok: true}
}

// Failure wraps err as a failed result.
func Failure[T any](err error) Try[T] {
	return Try[T]{err: err, ok: true}
}

// Available reports whether a result has been stored.
func (r Try[T]) Available() bool {
	return r.ok
}

// Value extracts the result.
func (r Try[T]) Value() (T, error) {
	return r.val, r.err
}

// Err returns the failure, or nil.
func (r Try[T]) Err() error {
	return r.err
}

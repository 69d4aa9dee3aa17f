package futurelite

// noCopy may be embedded into structs which must not be copied after
// first use, such as a Mutex with linked waiters. go vet's copylocks
// check recognizes it because it implements sync.Locker.
type noCopy struct{}

// Lock is a no-op used by go vet.
func (*noCopy) Lock() {}

// Unlock is a no-op used by go vet.
func (*noCopy) Unlock() {}

//go:build unix

package executor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/webriots/futurelite"
)

// FileIO is an IOExecutor performing positional file I/O on a small
// set of goroutines. Submit never blocks on the operation; callbacks
// run on the FileIO goroutines.
type FileIO struct {
	reqs   chan ioRequest
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

type ioRequest struct {
	fd     int
	op     futurelite.IOOpcode
	buf    []byte
	offset int64
	cb     futurelite.IOCallback
}

// NewFileIO starts n I/O goroutines.
func NewFileIO(n int) *FileIO {
	if n <= 0 {
		n = 1
	}

	f := &FileIO{reqs: make(chan ioRequest, n*64)}
	f.wg.Add(n)
	for range n {
		go f.run()
	}
	return f
}

func (f *FileIO) run() {
	defer f.wg.Done()
	for req := range f.reqs {
		req.cb(perform(req))
	}
}

func perform(req ioRequest) (int, error) {
	var (
		n   int
		err error
	)

	switch req.op {
	case futurelite.IOPRead:
		n, err = unix.Pread(req.fd, req.buf, req.offset)
	case futurelite.IOPWrite:
		n, err = unix.Pwrite(req.fd, req.buf, req.offset)
	case futurelite.IOPFsync:
		err = unix.Fsync(req.fd)
	default:
		err = fmt.Errorf("executor: unsupported io opcode %s", req.op)
	}

	if err != nil {
		return n, fmt.Errorf("executor: %s fd %d at %d: %w", req.op, req.fd, req.offset, err)
	}
	return n, nil
}

// Submit implements futurelite.IOExecutor. After Close the callback is
// invoked immediately with futurelite.ErrRejected.
func (f *FileIO) Submit(fd int, op futurelite.IOOpcode, buf []byte, offset int64, cb futurelite.IOCallback) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		cb(0, futurelite.ErrRejected)
		return
	}
	f.reqs <- ioRequest{fd: fd, op: op, buf: buf, offset: offset, cb: cb}
	f.mu.RUnlock()
}

// Close stops accepting submissions and waits for queued ones.
func (f *FileIO) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.reqs)
		f.mu.Unlock()
	})
	f.wg.Wait()
	return nil
}

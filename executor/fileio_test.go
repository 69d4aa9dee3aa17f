//go:build unix

package executor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webriots/futurelite"
)

func TestFileIO(t *testing.T) {
	r := require.New(t)

	f, err := os.Create(filepath.Join(t.TempDir(), "data"))
	r.NoError(err)
	defer f.Close()

	fio := NewFileIO(2)
	p, err := NewPool(
		Threads(2),
		IO(futurelite.IOExecutor(fio)),
		Logger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	r.NoError(err)
	defer p.Close()

	fd := int(f.Fd())
	got, err := futurelite.NewLazy(func(ctx context.Context, task *futurelite.Task) (string, error) {
		ioex := futurelite.IOExecutorOf(task.Executor())

		if _, err := futurelite.AwaitIO(task, ioex, fd, futurelite.IOPWrite, []byte("futurelite"), 0); err != nil {
			return "", err
		}
		if _, err := futurelite.AwaitIO(task, ioex, fd, futurelite.IOPFsync, nil, 0); err != nil {
			return "", err
		}
		if !p.CurrentThreadInExecutor(ctx) {
			return "", nil
		}

		buf := make([]byte, 6)
		n, err := futurelite.AwaitIO(task, ioex, fd, futurelite.IOPRead, buf, 6)
		return string(buf[:n]), err
	}).Via(p).Get(context.Background())

	r.NoError(err)
	r.Equal("lite", got)

	r.NoError(fio.Close())
	_, err = futurelite.AwaitIO(futurelite.Blocking(context.Background()), fio, fd, futurelite.IOPRead, make([]byte, 1), 0)
	r.ErrorIs(err, futurelite.ErrRejected)
}

func TestFileIOBadDescriptor(t *testing.T) {
	r := require.New(t)

	fio := NewFileIO(1)
	defer fio.Close()

	_, err := futurelite.AwaitIO(futurelite.Blocking(context.Background()), fio, -1, futurelite.IOPRead, make([]byte, 1), 0)
	r.Error(err)
}

package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webriots/futurelite"
)

func TestRegistry(t *testing.T) {
	r := require.New(t)

	reg := NewRegistry()
	RegisterBuiltins(reg)
	r.Equal([]string{"inline", "pool"}, reg.Names())

	ex, err := reg.New("inline")
	r.NoError(err)
	r.Equal("inline", ex.Name())

	ex, err = reg.New("pool")
	r.NoError(err)
	p, ok := ex.(*Pool)
	r.True(ok)
	r.NoError(p.Close())

	_, err = reg.New("missing")
	r.ErrorIs(err, ErrUnknownExecutor)

	// Names are taken by the first registration.
	r.False(reg.Register("inline", func() (futurelite.Executor, error) {
		return nil, errors.New("shadowed")
	}))

	boom := errors.New("boom")
	r.True(reg.Register("broken", func() (futurelite.Executor, error) { return nil, boom }))
	_, err = reg.New("broken")
	r.ErrorIs(err, boom)

	reg.Unregister("broken")
	r.Equal([]string{"inline", "pool"}, reg.Names())
}

package executor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/alphadose/haxmap"

	"github.com/webriots/futurelite"
)

// ErrUnknownExecutor is returned by Registry.New for names nobody
// registered.
var ErrUnknownExecutor = errors.New("executor: unknown executor")

// Factory builds an executor instance.
type Factory func() (futurelite.Executor, error)

// Registry maps names to executor factories. Implementations are
// registered explicitly at startup rather than from init functions,
// so a program only carries the backends it wires in.
type Registry struct {
	factories *haxmap.Map[string, Factory]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: haxmap.New[string, Factory]()}
}

// Register adds f under name. It reports false, keeping the existing
// factory, when name is taken.
func (r *Registry) Register(name string, f Factory) bool {
	_, loaded := r.factories.GetOrCompute(name, func() Factory { return f })
	return !loaded
}

// Unregister removes name.
func (r *Registry) Unregister(name string) {
	r.factories.Del(name)
}

// New builds an executor with the factory registered under name.
func (r *Registry) New(name string) (futurelite.Executor, error) {
	f, ok := r.factories.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExecutor, name)
	}

	ex, err := f()
	if err != nil {
		return nil, fmt.Errorf("executor: create %q: %w", name, err)
	}
	return ex, nil
}

// Names lists the registered names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.factories.ForEach(func(name string, _ Factory) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// RegisterBuiltins registers the executors of this package: "pool",
// a Pool with default options, and "inline".
func RegisterBuiltins(r *Registry) {
	r.Register("pool", func() (futurelite.Executor, error) {
		p, err := NewPool()
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	r.Register("inline", func() (futurelite.Executor, error) {
		return NewInline("inline"), nil
	})
}

package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"txchain/internal/metadata"
)

// ErrUnknownTarget is returned when invoking a name that was never registered.
var ErrUnknownTarget = errors.New("unknown target")

// Dispatcher routes named invocations through an ordered interceptor chain.
// Register all targets and interceptors before serving calls.
type Dispatcher struct {
	registry *metadata.Registry

	mu           sync.RWMutex
	targets      map[string]Target
	interceptors []Interceptor
}

// NewDispatcher creates a dispatcher. The first interceptor is outermost.
func NewDispatcher(registry *metadata.Registry, interceptors ...Interceptor) *Dispatcher {
	if registry == nil {
		registry = metadata.NewRegistry(nil)
	}
	return &Dispatcher{
		registry:     registry,
		targets:      make(map[string]Target),
		interceptors: interceptors,
	}
}

// Use appends interceptors to the chain (innermost last).
func (d *Dispatcher) Use(interceptors ...Interceptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interceptors = append(d.interceptors, interceptors...)
}

// Register adds a target. Its transactional marker is resolved by the registry.
func (d *Dispatcher) Register(def metadata.TargetDef, target Target) (metadata.TargetDef, error) {
	if target == nil {
		return metadata.TargetDef{}, fmt.Errorf("target %q: nil function", def.Name)
	}

	resolved, err := d.registry.Register(def)
	if err != nil {
		return metadata.TargetDef{}, err
	}

	d.mu.Lock()
	d.targets[resolved.Name] = target
	d.mu.Unlock()
	return resolved, nil
}

// MustRegister is Register that panics on error. Use for wiring at startup.
func (d *Dispatcher) MustRegister(def metadata.TargetDef, target Target) metadata.TargetDef {
	resolved, err := d.Register(def, target)
	if err != nil {
		panic(fmt.Sprintf("register target: %v", err))
	}
	return resolved
}

// Registry returns the metadata registry backing the dispatcher.
func (d *Dispatcher) Registry() *metadata.Registry {
	return d.registry
}

// Invoke calls the named target through the interceptor chain.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	def, ok := d.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}

	d.mu.RLock()
	target, ok := d.targets[name]
	interceptors := d.interceptors
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}

	inv := Invocation{
		Target:        def.Name,
		Group:         def.Group,
		Transactional: def.Transactional,
		Args:          args,
	}
	return NewChain(inv, target, interceptors...).Proceed(ctx)
}

// Call invokes a target and asserts its result type.
// A nil result yields the zero value of T.
func Call[T any](ctx context.Context, d *Dispatcher, name string, args ...any) (T, error) {
	var zero T

	res, err := d.Invoke(ctx, name, args...)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("target %s returned %T, want %T", name, res, zero)
	}
	return typed, nil
}

package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// StepFunc is the unit of work of an inline step. A non-nil result replaces
// the data value for the rest of the run; a nil result keeps the current one.
type StepFunc func(ctx context.Context, p *Pipeline, data any) (any, error)

// Transform is the capability a transform step instance must expose.
type Transform interface {
	Transform(ctx context.Context, p *Pipeline, data any) (any, error)
}

// TransformFactory builds a fresh transform instance. The instance is
// validated when the step is defined, not when it first runs.
type TransformFactory func() any

// Registry maps stable string keys to step functions and transform factories.
// It replaces run-time code loading: the set of runnable steps is closed and
// populated at startup.
type Registry struct {
	mu        sync.RWMutex
	funcs     map[string]StepFunc
	factories map[string]TransformFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs:     make(map[string]StepFunc),
		factories: make(map[string]TransformFactory),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when no explicit
// registry is injected.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// RegisterFunc registers fn under key, overwriting any previous entry.
func (r *Registry) RegisterFunc(key string, fn StepFunc) error {
	if fn == nil {
		return errors.Wrapf(ErrStepFuncMustBeSet, "key %q", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[key] = fn

	return nil
}

// Func resolves a registered step function by key.
func (r *Registry) Func(key string) (StepFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[key]
	if !ok {
		return nil, errors.Wrapf(ErrFuncNotRegistered, "key %q", key)
	}

	return fn, nil
}

// RegisterTransform registers factory under key, overwriting any previous
// entry.
func (r *Registry) RegisterTransform(key string, factory TransformFactory) error {
	if factory == nil {
		return errors.Wrapf(ErrFactoryMustBeSet, "key %q", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory

	return nil
}

// NewTransform resolves key, builds an instance, and verifies it exposes the
// Transform capability. The three failure modes stay distinguishable:
// unregistered key, nil instance, and instance without the capability.
func (r *Registry) NewTransform(key string) (Transform, error) {
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrTransformNotRegistered, "key %q", key)
	}

	instance := factory()
	if instance == nil {
		return nil, errors.Wrapf(ErrNilTransform, "key %q", key)
	}

	transform, ok := instance.(Transform)
	if !ok {
		return nil, errors.Wrapf(ErrNotTransform, "key %q resolved to %T", key, instance)
	}

	return transform, nil
}

// CodeResolver turns the persisted code of an inline step back into a
// runnable step function.
type CodeResolver interface {
	ResolveCode(code []byte) (StepFunc, error)
}

type registryResolver struct {
	registry *Registry
}

// NewRegistryResolver returns the default resolver: code bytes are decoded as
// a function reference and looked up in the registry.
func NewRegistryResolver(registry *Registry) CodeResolver {
	return &registryResolver{registry: registry}
}

func (r *registryResolver) ResolveCode(code []byte) (StepFunc, error) {
	key, err := decodeFuncRef(code)
	if err != nil {
		return nil, err
	}

	return r.registry.Func(key)
}

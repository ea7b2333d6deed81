package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cortexfabric/go-pipeline/pkg/pipeline/codec"
	"github.com/cortexfabric/go-pipeline/pkg/pipeline/measure"
)

// Pipeline is an ordered list of steps plus named dependency pipelines and a
// context store of serialized values.
type Pipeline struct {
	pipelineName string
	loader       *Loader
	registry     *Registry
	resolver     CodeResolver
	codec        codec.Codec
	measure      measure.Measure

	steps    []step
	depNames []string
	deps     map[string]*Pipeline
	context  map[string][]byte
}

// New creates a pipeline and registers it in loader under name. Dependencies
// named via WithDependencies are resolved through the loader in order.
// Registering a name that already exists overwrites the loader entry.
func New(loader *Loader, name string, opts ...Option) (*Pipeline, error) {
	if loader == nil {
		return nil, ErrLoaderMustBeSet
	}
	if name == "" {
		return nil, ErrNameMustBeSet
	}

	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	pipe := newPipeline(loader, name)
	if cfg.registry != nil {
		pipe.registry = cfg.registry
		pipe.resolver = NewRegistryResolver(cfg.registry)
	}
	if cfg.resolver != nil {
		pipe.resolver = cfg.resolver
	}
	if cfg.codec != nil {
		pipe.codec = cfg.codec
	}
	if cfg.measure != nil {
		pipe.measure = cfg.measure
	}

	for _, dep := range cfg.depends {
		pipe.AddDependency(loader.GetPipeline(dep))
	}

	err := loader.AddPipeline(name, pipe)
	if err != nil {
		return nil, err
	}

	return pipe, nil
}

func newPipeline(loader *Loader, name string) *Pipeline {
	return &Pipeline{
		pipelineName: name,
		loader:       loader,
		registry:     loader.registry,
		resolver:     NewRegistryResolver(loader.registry),
		codec:        codec.Msgpack{},
		deps:         make(map[string]*Pipeline),
		context:      make(map[string][]byte),
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.pipelineName
}

// Steps lists the pipeline's steps in execution order.
func (p *Pipeline) Steps() []StepInfo {
	infos := make([]StepInfo, 0, len(p.steps))
	for _, s := range p.steps {
		infos = append(infos, s.info())
	}

	return infos
}

// Dependencies lists the dependency pipelines in insertion order.
func (p *Pipeline) Dependencies() []*Pipeline {
	deps := make([]*Pipeline, 0, len(p.depNames))
	for _, name := range p.depNames {
		deps = append(deps, p.deps[name])
	}

	return deps
}

// AddStep adds a step under name. A step function becomes an inline step and
// is registered under name; a string is treated as the key of a registered
// transform.
func (p *Pipeline) AddStep(name string, def any, opts ...StepOption) (*Pipeline, error) {
	switch d := def.(type) {
	case StepFunc:
		return p.AddFuncStep(name, d, opts...)
	case func(context.Context, *Pipeline, any) (any, error):
		return p.AddFuncStep(name, d, opts...)
	case string:
		return p.AddTransformStep(name, d, opts...)
	default:
		return nil, errors.Wrapf(ErrInvalidStepDefinition, "unsupported definition type %T", def)
	}
}

// AddFuncStep registers fn under key and appends an inline step referring to
// it. The step name defaults to the key and can be overridden with
// WithStepName.
func (p *Pipeline) AddFuncStep(key string, fn StepFunc, opts ...StepOption) (*Pipeline, error) {
	if fn == nil {
		return nil, errors.Wrapf(ErrStepFuncMustBeSet, "key %q", key)
	}

	cfg := stepOptions{name: key}
	for _, opt := range opts {
		opt(&cfg)
	}

	err := p.registry.RegisterFunc(key, fn)
	if err != nil {
		return nil, err
	}

	code, err := encodeFuncRef(key)
	if err != nil {
		return nil, err
	}

	s := newInlineStep(cfg.name, key, code)
	s.fn = fn
	p.steps = append(p.steps, s)
	p.addMetric(s.name())

	return p, nil
}

// AddTransformStep appends a step referring to the registered transform key.
// An empty name defaults to the key itself.
func (p *Pipeline) AddTransformStep(name, key string, opts ...StepOption) (*Pipeline, error) {
	cfg := stepOptions{name: name}
	for _, opt := range opts {
		opt(&cfg)
	}

	moduleName, className, err := splitTransformKey(key)
	if err != nil {
		return nil, err
	}

	s, err := newTransformStep(cfg.name, moduleName, className, p.registry)
	if err != nil {
		return nil, err
	}

	p.steps = append(p.steps, s)
	p.addMetric(s.name())

	return p, nil
}

// GetStep returns the first step matching name: the resolved step function
// for an inline step, or a fresh instance for a transform step. It returns
// nil when no step matches.
func (p *Pipeline) GetStep(name string) (any, error) {
	for _, s := range p.steps {
		if s.name() != name {
			continue
		}

		switch st := s.(type) {
		case *inlineStep:
			if st.fn != nil {
				return st.fn, nil
			}

			return p.resolver.ResolveCode(st.code)
		case *transformStep:
			return p.registry.NewTransform(st.fullName())
		}
	}

	return nil, nil
}

// RemoveStep removes every step matching name.
func (p *Pipeline) RemoveStep(name string) *Pipeline {
	kept := make([]step, 0, len(p.steps))
	for _, s := range p.steps {
		if s.name() != name {
			kept = append(kept, s)
		}
	}
	p.steps = kept

	return p
}

// AddDependency registers a dependency pipeline keyed by its name. Re-adding
// a name overwrites the entry and keeps its original position.
func (p *Pipeline) AddDependency(dep *Pipeline) *Pipeline {
	if _, ok := p.deps[dep.pipelineName]; !ok {
		p.depNames = append(p.depNames, dep.pipelineName)
	}
	p.deps[dep.pipelineName] = dep

	return p
}

// Reset clears the step list. Dependencies and context are cleared only when
// the matching flag is set.
func (p *Pipeline) Reset(resetDeps, resetContext bool) *Pipeline {
	p.steps = nil
	if resetDeps {
		p.depNames = nil
		p.deps = make(map[string]*Pipeline)
	}
	if resetContext {
		p.context = make(map[string][]byte)
	}

	return p
}

// CopyFrom replaces this pipeline's steps, dependencies and context with
// copies of the given pipeline's. Dependency references are shared: a deep
// copy would produce pipelines unknown to any loader.
func (p *Pipeline) CopyFrom(other *Pipeline) *Pipeline {
	p.steps = make([]step, 0, len(other.steps))
	for _, s := range other.steps {
		p.steps = append(p.steps, s.clone())
	}

	p.depNames = append([]string(nil), other.depNames...)
	p.deps = make(map[string]*Pipeline, len(other.deps))
	for name, dep := range other.deps {
		p.deps[name] = dep
	}

	p.context = make(map[string][]byte, len(other.context))
	for key, value := range other.context {
		p.context[key] = append([]byte(nil), value...)
	}

	return p
}

// Run executes every dependency pipeline in insertion order and then this
// pipeline's own steps, threading data through all of them. Any cycle in the
// reachable dependency graph aborts the run before anything executes.
func (p *Pipeline) Run(ctx context.Context, data any) (any, error) {
	err := p.checkCycles()
	if err != nil {
		return nil, err
	}

	return p.run(ctx, data)
}

func (p *Pipeline) run(ctx context.Context, data any) (any, error) {
	data, err := p.runDependencies(ctx, data)
	if err != nil {
		return nil, err
	}

	logrus.WithField("pipeline", p.pipelineName).Debug("running pipeline")

	start := time.Now()
	for _, s := range p.steps {
		err := ctx.Err()
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline %q", p.pipelineName)
		}

		stepStart := time.Now()
		data, err = s.run(ctx, p, data)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline %q", p.pipelineName)
		}
		p.recordDuration(s.name(), time.Since(stepStart))
	}
	p.recordTotal(time.Since(start))

	return data, nil
}

func (p *Pipeline) runDependencies(ctx context.Context, data any) (any, error) {
	var err error

	for _, name := range p.depNames {
		dep := p.deps[name]
		if dep.pipelineName == p.pipelineName {
			return nil, errors.Wrapf(ErrCircularDependency, "pipeline %q depends on itself", p.pipelineName)
		}

		data, err = dep.run(ctx, data)
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}

func (p *Pipeline) addMetric(name string) {
	if p.measure == nil {
		return
	}
	p.measure.AddMetric(name)
}

func (p *Pipeline) recordDuration(name string, elapsed time.Duration) {
	if p.measure == nil {
		return
	}
	if metric := p.measure.GetMetric(name); metric != nil {
		metric.AddDuration(elapsed)
	}
}

func (p *Pipeline) recordTotal(elapsed time.Duration) {
	if p.measure == nil {
		return
	}

	metric := p.measure.GetMetric(p.pipelineName)
	if metric == nil {
		metric = p.measure.AddMetric(p.pipelineName)
	}
	metric.SetTotalDuration(elapsed)
}

package pipeline

import (
	"github.com/cortexfabric/go-pipeline/pkg/pipeline/codec"
	"github.com/cortexfabric/go-pipeline/pkg/pipeline/measure"
)

type options struct {
	depends  []string
	registry *Registry
	resolver CodeResolver
	codec    codec.Codec
	measure  measure.Measure
}

// Option configures a pipeline at construction time.
type Option func(*options)

// WithDependencies names the pipelines this one depends on. Each name is
// resolved through the loader in order; unknown names become new empty
// pipelines.
func WithDependencies(names ...string) Option {
	return func(o *options) {
		o.depends = append(o.depends, names...)
	}
}

// WithRegistry overrides the loader's step registry for this pipeline.
func WithRegistry(registry *Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithCodec overrides the codec used for context values.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithCodeResolver overrides how the persisted code of inline steps is
// resolved at run time.
func WithCodeResolver(r CodeResolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithMeasure records per-step and per-run durations into m.
func WithMeasure(m measure.Measure) Option {
	return func(o *options) {
		o.measure = m
	}
}

type stepOptions struct {
	name string
}

// StepOption configures a single step.
type StepOption func(*stepOptions)

// WithStepName sets the step name when it should differ from the function
// key.
func WithStepName(name string) StepOption {
	return func(o *stepOptions) {
		o.name = name
	}
}

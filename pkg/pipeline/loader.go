package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Loader resolves pipeline names to pipeline instances. Dependencies are
// persisted by name only, so deserialization always goes through a loader to
// rebuild the object graph.
//
// Loaders are safe for concurrent use. Prefer injecting a dedicated loader;
// DefaultLoader exists for composition roots that want process-wide sharing.
type Loader struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
	registry  *Registry
	store     DumpStore
}

// LoaderOption configures a loader.
type LoaderOption func(*Loader)

// WithLoaderRegistry sets the registry handed to pipelines created through
// this loader.
func WithLoaderRegistry(registry *Registry) LoaderOption {
	return func(l *Loader) {
		l.registry = registry
	}
}

// WithDumpStore makes the loader persist its full dump on every add and
// remove.
func WithDumpStore(store DumpStore) LoaderOption {
	return func(l *Loader) {
		l.store = store
	}
}

// NewLoader creates an empty loader.
func NewLoader(opts ...LoaderOption) *Loader {
	loader := &Loader{
		pipelines: make(map[string]*Pipeline),
		registry:  DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(loader)
	}

	return loader
}

var (
	defaultLoader   *Loader
	defaultLoaderMu sync.Mutex
)

// DefaultLoader returns the process-wide loader, creating it on first call.
func DefaultLoader() *Loader {
	defaultLoaderMu.Lock()
	defer defaultLoaderMu.Unlock()

	if defaultLoader == nil {
		defaultLoader = NewLoader()
	}

	return defaultLoader
}

// AddPipeline registers pipe under name, overwriting any existing entry.
func (l *Loader) AddPipeline(name string, pipe *Pipeline) error {
	l.mu.Lock()
	l.pipelines[name] = pipe
	l.mu.Unlock()

	return l.persist()
}

// GetExisting returns the pipeline registered under name, failing closed on
// a miss.
func (l *Loader) GetExisting(name string) (*Pipeline, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pipe, ok := l.pipelines[name]

	return pipe, ok
}

// GetPipeline returns the pipeline registered under name. A miss creates,
// registers and returns a new empty pipeline: the lookup never fails, and a
// mistyped name turns into a pipeline that contributes nothing. Use
// GetExisting to fail closed instead.
func (l *Loader) GetPipeline(name string) *Pipeline {
	l.mu.Lock()
	pipe, ok := l.pipelines[name]
	if !ok {
		pipe = newPipeline(l, name)
		l.pipelines[name] = pipe
	}
	l.mu.Unlock()

	if !ok {
		err := l.persist()
		if err != nil {
			logrus.WithError(err).WithField("pipeline", name).Warn("unable to persist pipeline dump")
		}
	}

	return pipe
}

// RemovePipeline deletes the entry for name. Removing an unknown name is a
// no-op.
func (l *Loader) RemovePipeline(name string) error {
	l.mu.Lock()
	delete(l.pipelines, name)
	l.mu.Unlock()

	return l.persist()
}

// Dump serializes every registered pipeline, keyed by registered name.
func (l *Loader) Dump() map[string]*Document {
	l.mu.RLock()
	defer l.mu.RUnlock()

	docs := make(map[string]*Document, len(l.pipelines))
	for name, pipe := range l.pipelines {
		docs[name] = pipe.ToDocument()
	}

	return docs
}

// Flush persists the current dump to the configured store.
func (l *Loader) Flush() error {
	return l.persist()
}

func (l *Loader) persist() error {
	if l.store == nil {
		return nil
	}

	err := l.store.Save(l.Dump())
	if err != nil {
		return errors.Wrap(err, "unable to persist pipeline dump")
	}

	return nil
}

// rebind points every dependency reference at the pipeline currently
// registered under its name. Bulk loads can resolve a dependency before its
// own document arrives, leaving references at empty placeholders.
func (l *Loader) rebind() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, pipe := range l.pipelines {
		for _, name := range pipe.depNames {
			if dep, ok := l.pipelines[name]; ok {
				pipe.deps[name] = dep
			}
		}
	}
}

// RunAll runs the named pipelines concurrently, each over its own input,
// with at most limit runs in flight (limit <= 0 means no limit). Each
// pipeline still executes its dependencies and steps strictly in order. The
// first error cancels the remaining runs.
func (l *Loader) RunAll(ctx context.Context, inputs map[string]any, limit int) (map[string]any, error) {
	errGrp, dCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		errGrp.SetLimit(limit)
	}

	var mu sync.Mutex
	outputs := make(map[string]any, len(inputs))

	for name, data := range inputs {
		pipe, ok := l.GetExisting(name)
		if !ok {
			return nil, errors.Wrapf(ErrPipelineNotFound, "pipeline %q", name)
		}

		name, data := name, data
		errGrp.Go(func() error {
			out, err := pipe.Run(dCtx, data)
			if err != nil {
				return errors.Wrapf(err, "pipeline %q", name)
			}

			mu.Lock()
			outputs[name] = out
			mu.Unlock()

			return nil
		})
	}

	err := errGrp.Wait()
	if err != nil {
		return nil, err
	}

	return outputs, nil
}

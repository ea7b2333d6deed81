package pipeline

import "github.com/pkg/errors"

// SetContext stores value under key, serialized with the pipeline's codec.
// An existing value is overwritten.
func (p *Pipeline) SetContext(key string, value any) error {
	raw, err := p.codec.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "unable to serialize context value for key %q", key)
	}
	p.context[key] = raw

	return nil
}

// GetContext returns the value stored under key, looking locally first and
// then through dependencies in insertion order. Inherited values are
// read-only and never override a local entry. Only the outermost value is
// deserialized. When no pipeline on the walk holds key, defaultValue is
// returned.
func (p *Pipeline) GetContext(key string, defaultValue any) (any, error) {
	raw, found, err := p.lookupContext(key, map[string]struct{}{})
	if err != nil {
		return nil, err
	}
	if !found {
		return defaultValue, nil
	}

	return p.codec.Unmarshal(raw)
}

// lookupContext walks the dependency graph keeping the current path so a
// cycle anywhere on the walk fails loudly instead of recursing forever.
// Diamonds stay legal: only a pipeline already on the active path is a cycle.
func (p *Pipeline) lookupContext(key string, path map[string]struct{}) ([]byte, bool, error) {
	if raw, ok := p.context[key]; ok {
		return raw, true, nil
	}

	path[p.pipelineName] = struct{}{}
	defer delete(path, p.pipelineName)

	for _, name := range p.depNames {
		dep := p.deps[name]
		if _, onPath := path[dep.pipelineName]; onPath {
			return nil, false, errors.Wrapf(ErrCircularDependency, "pipeline %q is part of a context lookup cycle", dep.pipelineName)
		}

		raw, found, err := dep.lookupContext(key, path)
		if err != nil || found {
			return raw, found, err
		}
	}

	return nil, false, nil
}

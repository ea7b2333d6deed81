// Package measure records per-step and per-run durations of a pipeline.
package measure

import (
	"sync"
)

// DefaultMeasure keeps one metric per step name. Safe for concurrent use so a
// single measure can serve pipelines running in parallel.
type DefaultMeasure struct {
	mu    sync.RWMutex
	steps map[string]Metric
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		steps: make(map[string]Metric),
	}
}

// AddMetric returns the metric for name, creating it if needed.
func (m *DefaultMeasure) AddMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if metric, ok := m.steps[name]; ok {
		return metric
	}

	metric := newDefaultMetric()
	m.steps[name] = metric

	return metric
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.steps[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]Metric, len(m.steps))
	for name, metric := range m.steps {
		all[name] = metric
	}

	return all
}

var _ Measure = (*DefaultMeasure)(nil)

package measure

import "time"

// Measure collects run metrics for a pipeline's steps.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric accumulates durations for a single step or a whole pipeline run.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AVGDuration() time.Duration
	TotalRuns() int64
	SetTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
}

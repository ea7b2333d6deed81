package measure_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexfabric/go-pipeline/pkg/pipeline/measure"
)

func TestAddMetricIdempotent(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()

	first := m.AddMetric("fit")
	second := m.AddMetric("fit")
	assert.Same(t, first, second)
	assert.Same(t, first, m.GetMetric("fit"))
}

func TestGetMetricUnknownName(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	assert.Nil(t, m.GetMetric("never-seen"))
}

func TestAllMetrics(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	m.AddMetric("fit")
	m.AddMetric("score")

	all := m.AllMetrics()
	require.Len(t, all, 2)
	assert.Contains(t, all, "fit")
	assert.Contains(t, all, "score")
}

func TestMetricAverages(t *testing.T) {
	t.Parallel()

	metric := measure.NewDefaultMeasure().AddMetric("fit")

	metric.AddDuration(100 * time.Millisecond)
	metric.AddDuration(300 * time.Millisecond)

	assert.Equal(t, int64(2), metric.TotalRuns())
	assert.Equal(t, 200*time.Millisecond, metric.AVGDuration())
}

func TestMetricAverageWithoutRuns(t *testing.T) {
	t.Parallel()

	metric := measure.NewDefaultMeasure().AddMetric("fit")
	assert.Equal(t, time.Duration(0), metric.AVGDuration())
}

func TestMetricTotalDuration(t *testing.T) {
	t.Parallel()

	metric := measure.NewDefaultMeasure().AddMetric("run")
	metric.SetTotalDuration(3 * time.Second)
	assert.Equal(t, 3*time.Second, metric.GetTotalDuration())
}

func TestMetricConcurrentAdd(t *testing.T) {
	t.Parallel()

	metric := measure.NewDefaultMeasure().AddMetric("fit")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metric.AddDuration(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(16), metric.TotalRuns())
	assert.Equal(t, time.Millisecond, metric.AVGDuration())
}

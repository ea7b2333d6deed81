package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexfabric/go-pipeline/pkg/pipeline"
)

func TestGetPipelineAutoVivification(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	pipe := loader.GetPipeline("never-seen")
	require.NotNil(t, pipe)
	assert.Equal(t, "never-seen", pipe.Name())
	assert.Empty(t, pipe.Steps())
	assert.Empty(t, pipe.Dependencies())

	// repeated lookups return the same instance
	assert.Same(t, pipe, loader.GetPipeline("never-seen"))
}

func TestGetExistingFailsClosed(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	_, ok := loader.GetExisting("never-seen")
	assert.False(t, ok)

	pipe := newTestPipeline(t, loader, "known")
	got, ok := loader.GetExisting("known")
	require.True(t, ok)
	assert.Same(t, pipe, got)
}

func TestNewOverwritesRegistryEntry(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	first := newTestPipeline(t, loader, "train")
	second := newTestPipeline(t, loader, "train")

	got, ok := loader.GetExisting("train")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
}

func TestRemovePipeline(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	newTestPipeline(t, loader, "gone")

	require.NoError(t, loader.RemovePipeline("gone"))
	_, ok := loader.GetExisting("gone")
	assert.False(t, ok)

	// removing an unknown name is a no-op
	require.NoError(t, loader.RemovePipeline("gone"))
}

func TestDefaultLoaderIsStable(t *testing.T) {
	t.Parallel()

	assert.Same(t, pipeline.DefaultLoader(), pipeline.DefaultLoader())
}

func TestLoaderConcurrentAccess(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("pipe-%d", i%4)
			pipe := loader.GetPipeline(name)
			require.NotNil(t, pipe)
			if i%8 == 0 {
				_ = loader.RemovePipeline(name)
			}
		}()
	}
	wg.Wait()
}

func TestLoaderDump(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	dep := newTestPipeline(t, loader, "clean")
	addFuncStep(t, dep, "drop", incrementKey("dropped", 1))
	pipe := newTestPipeline(t, loader, "train", pipeline.WithDependencies("clean"))
	addFuncStep(t, pipe, "fit", incrementKey("fitted", 1))

	docs := loader.Dump()
	require.Len(t, docs, 2)
	require.Contains(t, docs, "clean")
	require.Contains(t, docs, "train")
	assert.Equal(t, []string{"clean"}, docs["train"].Dependencies)
	require.Len(t, docs["train"].Steps, 1)
	assert.Equal(t, "fit", docs["train"].Steps[0].Name)
}

func TestRunAll(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	foo := newTestPipeline(t, loader, "foo")
	addFuncStep(t, foo, "foo-step", incrementKey("foo", 1))
	bar := newTestPipeline(t, loader, "bar")
	addFuncStep(t, bar, "bar-step", incrementKey("bar", 2))

	outputs, err := loader.RunAll(context.Background(), map[string]any{
		"foo": map[string]any{},
		"bar": map[string]any{},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"foo": 1}, outputs["foo"])
	assert.Equal(t, map[string]any{"bar": 2}, outputs["bar"])
}

func TestRunAllUnknownPipeline(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	_, err := loader.RunAll(context.Background(), map[string]any{"ghost": nil}, 0)
	require.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
}

func TestRunAllPropagatesStepError(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)

	bad := newTestPipeline(t, loader, "bad")
	addFuncStep(t, bad, "boom", func(_ context.Context, _ *pipeline.Pipeline, _ any) (any, error) {
		return nil, assert.AnError
	})

	_, err := loader.RunAll(context.Background(), map[string]any{"bad": nil}, 0)
	require.ErrorIs(t, err, assert.AnError)
}

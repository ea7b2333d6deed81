package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexfabric/go-pipeline/pkg/pipeline"
)

// newTestLoader returns a loader with its own registry so parallel tests
// never overwrite each other's registered step functions.
func newTestLoader(t *testing.T) *pipeline.Loader {
	t.Helper()

	return pipeline.NewLoader(pipeline.WithLoaderRegistry(pipeline.NewRegistry()))
}

func newTestPipeline(t *testing.T, loader *pipeline.Loader, name string, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()

	pipe, err := pipeline.New(loader, name, opts...)
	require.NoError(t, err)

	return pipe
}

func addFuncStep(t *testing.T, pipe *pipeline.Pipeline, key string, fn pipeline.StepFunc, opts ...pipeline.StepOption) {
	t.Helper()

	_, err := pipe.AddFuncStep(key, fn, opts...)
	require.NoError(t, err)
}

// recordName returns a step function that appends name to order and leaves
// the data value untouched.
func recordName(name string, order *[]string) pipeline.StepFunc {
	return func(_ context.Context, _ *pipeline.Pipeline, _ any) (any, error) {
		*order = append(*order, name)

		return nil, nil
	}
}

// incrementKey returns a step function that mutates the data map in place.
func incrementKey(key string, by int) pipeline.StepFunc {
	return func(_ context.Context, _ *pipeline.Pipeline, data any) (any, error) {
		values, ok := data.(map[string]any)
		if !ok {
			return nil, errAssert
		}

		current, _ := values[key].(int)
		values[key] = current + by

		return nil, nil
	}
}

var errAssert = errString("data must be a map[string]any")

type errString string

func (e errString) Error() string { return string(e) }

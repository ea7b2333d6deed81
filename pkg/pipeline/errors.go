package pipeline

import "github.com/pkg/errors"

var (
	ErrLoaderMustBeSet        = errors.New("loader must be set")
	ErrNameMustBeSet          = errors.New("name must be set")
	ErrStepFuncMustBeSet      = errors.New("step function must be set")
	ErrFactoryMustBeSet       = errors.New("transform factory must be set")
	ErrInvalidStepDefinition  = errors.New("step definition must be a step function or a transform key")
	ErrInvalidTransformKey    = errors.New(`transform key must have the form "module.Class"`)
	ErrTransformNotRegistered = errors.New("transform is not registered")
	ErrNilTransform           = errors.New("transform factory returned nil")
	ErrNotTransform           = errors.New("transform instance does not implement Transform")
	ErrFuncNotRegistered      = errors.New("step function is not registered")
	ErrCircularDependency     = errors.New("circular dependency detected in pipeline dependency graph")
	ErrInvalidStepDocument    = errors.New("step document must contain a function or a transform")
	ErrPipelineNotFound       = errors.New("pipeline is not registered")
)

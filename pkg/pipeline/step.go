package pipeline

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	inlineStepType    = "inline"
	transformStepType = "transform"
)

// StepInfo describes one step of a pipeline.
type StepInfo struct {
	Name string
	Type string
}

type step interface {
	name() string
	info() StepInfo
	run(ctx context.Context, p *Pipeline, data any) (any, error)
	document() *StepDocument
	clone() step
}

// funcRef is the persisted code of an inline step: a reference into the step
// function registry, not the function itself.
type funcRef struct {
	Name string `msgpack:"name"`
}

func encodeFuncRef(key string) ([]byte, error) {
	code, err := msgpack.Marshal(funcRef{Name: key})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to encode function reference %q", key)
	}

	return code, nil
}

func decodeFuncRef(code []byte) (string, error) {
	var ref funcRef

	err := msgpack.Unmarshal(code, &ref)
	if err != nil {
		return "", errors.Wrap(err, "unable to decode function reference")
	}

	return ref.Name, nil
}

// inlineStep keeps the function it was defined with, so re-registering the
// key later never rewires an existing step. The bound function is nil for
// steps rebuilt from a document; those resolve through the registry on every
// run.
type inlineStep struct {
	stepName string
	funcName string
	code     []byte
	fn       StepFunc
}

func newInlineStep(stepName, funcName string, code []byte) *inlineStep {
	if stepName == "" {
		stepName = funcName
	}

	return &inlineStep{
		stepName: stepName,
		funcName: funcName,
		code:     code,
	}
}

func (s *inlineStep) name() string { return s.stepName }

func (s *inlineStep) info() StepInfo {
	return StepInfo{Name: s.stepName, Type: inlineStepType}
}

// run uses the bound function when the step was defined in-process. A step
// rebuilt from a document resolves its function reference on every
// invocation, so a stale reference fails here, not at load time.
func (s *inlineStep) run(ctx context.Context, p *Pipeline, data any) (any, error) {
	fn := s.fn
	if fn == nil {
		var err error

		fn, err = p.resolver.ResolveCode(s.code)
		if err != nil {
			return nil, errors.Wrapf(err, "step %q", s.stepName)
		}
	}

	logrus.WithField("step", s.stepName).Debug("running step")

	out, err := fn(ctx, p, data)
	if err != nil {
		return nil, errors.Wrapf(err, "step %q", s.stepName)
	}
	if out != nil {
		data = out
	}

	return data, nil
}

func (s *inlineStep) document() *StepDocument {
	return &StepDocument{
		Name: s.stepName,
		Function: &FunctionDocument{
			Name: s.funcName,
			Code: base64.StdEncoding.EncodeToString(s.code),
			Type: inlineStepType,
		},
	}
}

func (s *inlineStep) clone() step {
	return &inlineStep{
		stepName: s.stepName,
		funcName: s.funcName,
		code:     append([]byte(nil), s.code...),
		fn:       s.fn,
	}
}

type transformStep struct {
	stepName   string
	moduleName string
	className  string
	registry   *Registry
}

// newTransformStep eagerly resolves and instantiates the referenced transform
// so definition errors surface when the step is added, not on the first run.
func newTransformStep(stepName, moduleName, className string, registry *Registry) (*transformStep, error) {
	s := &transformStep{
		stepName:   stepName,
		moduleName: moduleName,
		className:  className,
		registry:   registry,
	}
	if s.stepName == "" {
		s.stepName = s.fullName()
	}

	_, err := registry.NewTransform(s.fullName())
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *transformStep) fullName() string {
	return s.moduleName + "." + s.className
}

func (s *transformStep) name() string { return s.stepName }

func (s *transformStep) info() StepInfo {
	return StepInfo{Name: s.stepName, Type: transformStepType}
}

// run builds a fresh transform instance per invocation.
func (s *transformStep) run(ctx context.Context, p *Pipeline, data any) (any, error) {
	transform, err := s.registry.NewTransform(s.fullName())
	if err != nil {
		return nil, errors.Wrapf(err, "step %q", s.stepName)
	}

	logrus.WithField("step", s.stepName).Debug("running step")

	out, err := transform.Transform(ctx, p, data)
	if err != nil {
		return nil, errors.Wrapf(err, "step %q", s.stepName)
	}
	if out != nil {
		data = out
	}

	return data, nil
}

func (s *transformStep) document() *StepDocument {
	return &StepDocument{
		Name: s.stepName,
		Transform: &TransformDocument{
			ClassName:  s.className,
			ModuleName: s.moduleName,
		},
	}
}

func (s *transformStep) clone() step {
	cloned := *s

	return &cloned
}

func splitTransformKey(key string) (string, string, error) {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", errors.Wrapf(ErrInvalidTransformKey, "key %q", key)
	}

	return key[:idx], key[idx+1:], nil
}

// stepFromDocument dispatches on the presence of the function or transform
// record to pick the step variant.
func stepFromDocument(doc *StepDocument, registry *Registry) (step, error) {
	switch {
	case doc.Function != nil:
		code, err := base64.StdEncoding.DecodeString(doc.Function.Code)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decode code for step %q", doc.Name)
		}

		return newInlineStep(doc.Name, doc.Function.Name, code), nil
	case doc.Transform != nil:
		return newTransformStep(doc.Name, doc.Transform.ModuleName, doc.Transform.ClassName, registry)
	default:
		return nil, errors.Wrapf(ErrInvalidStepDocument, "step %q", doc.Name)
	}
}

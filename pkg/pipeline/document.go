package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document is the persisted form of a pipeline. Dependencies are stored by
// name only; the object graph is rebuilt through a loader at load time.
type Document struct {
	Name         string            `json:"name" yaml:"name"`
	Steps        []*StepDocument   `json:"steps" yaml:"steps"`
	Dependencies []string          `json:"dependencies" yaml:"dependencies"`
	Context      map[string]string `json:"context" yaml:"context"`
}

// StepDocument holds exactly one of Function or Transform.
type StepDocument struct {
	Name      string             `json:"name" yaml:"name"`
	Function  *FunctionDocument  `json:"function,omitempty" yaml:"function,omitempty"`
	Transform *TransformDocument `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// FunctionDocument is the persisted form of an inline step.
type FunctionDocument struct {
	Name string `json:"name" yaml:"name"`
	Code string `json:"code" yaml:"code"`
	Type string `json:"type" yaml:"type"`
}

// TransformDocument is the persisted form of a transform step.
type TransformDocument struct {
	ClassName  string `json:"class_name" yaml:"class_name"`
	ModuleName string `json:"module_name" yaml:"module_name"`
}

// ToDocument serializes the pipeline: steps by variant, dependencies by name,
// context values base64 encoded.
func (p *Pipeline) ToDocument() *Document {
	// Dependencies must stay a JSON array even when empty: a nil slice would
	// encode as null, which the streaming parser rejects.
	doc := &Document{
		Name:         p.pipelineName,
		Steps:        make([]*StepDocument, 0, len(p.steps)),
		Dependencies: append(make([]string, 0, len(p.depNames)), p.depNames...),
		Context:      make(map[string]string, len(p.context)),
	}

	for _, s := range p.steps {
		doc.Steps = append(doc.Steps, s.document())
	}
	for key, value := range p.context {
		doc.Context[key] = base64.StdEncoding.EncodeToString(value)
	}

	return doc
}

// FromDocument rebuilds a pipeline from doc and registers it in loader.
// Dependency names unknown to the loader resolve to new empty pipelines, so
// documents can be loaded in any order. The document is validated before the
// pipeline is registered: loading a broken document never disturbs whatever
// the loader already holds under the same name.
func FromDocument(loader *Loader, doc *Document, opts ...Option) (*Pipeline, error) {
	if loader == nil {
		return nil, ErrLoaderMustBeSet
	}

	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	registry := loader.registry
	if cfg.registry != nil {
		registry = cfg.registry
	}

	steps := make([]step, 0, len(doc.Steps))
	for _, stepDoc := range doc.Steps {
		s, err := stepFromDocument(stepDoc, registry)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}

	context := make(map[string][]byte, len(doc.Context))
	for key, encoded := range doc.Context {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decode context value for key %q", key)
		}
		context[key] = raw
	}

	pipe, err := New(loader, doc.Name, opts...)
	if err != nil {
		return nil, err
	}

	for _, s := range steps {
		pipe.steps = append(pipe.steps, s)
		pipe.addMetric(s.name())
	}
	pipe.context = context

	for _, dep := range doc.Dependencies {
		pipe.AddDependency(loader.GetPipeline(dep))
	}

	return pipe, nil
}

// LoadJSON parses a raw JSON pipeline document and rebuilds the pipeline
// through loader.
func LoadJSON(loader *Loader, raw []byte, opts ...Option) (*Pipeline, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	return FromDocument(loader, doc, opts...)
}

// ParseDocument parses a raw JSON pipeline document without unmarshalling the
// whole payload at once, dispatching each step record on the presence of its
// "function" or "transform" key.
func ParseDocument(raw []byte) (*Document, error) {
	name, err := jsonparser.GetString(raw, "name")
	if err != nil {
		return nil, errors.Wrap(err, "unable to read pipeline name")
	}

	doc := &Document{
		Name:    name,
		Context: make(map[string]string),
	}

	var stepErr error
	_, err = jsonparser.ArrayEach(raw, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		if stepErr != nil {
			return
		}

		stepDoc, err := parseStepDocument(value)
		if err != nil {
			stepErr = err

			return
		}
		doc.Steps = append(doc.Steps, stepDoc)
	}, "steps")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, errors.Wrap(err, "unable to read steps")
	}
	if stepErr != nil {
		return nil, stepErr
	}

	_, err = jsonparser.ArrayEach(raw, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		doc.Dependencies = append(doc.Dependencies, string(value))
	}, "dependencies")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, errors.Wrap(err, "unable to read dependencies")
	}

	err = jsonparser.ObjectEach(raw, func(key, value []byte, _ jsonparser.ValueType, _ int) error {
		doc.Context[string(key)] = string(value)

		return nil
	}, "context")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, errors.Wrap(err, "unable to read context")
	}

	return doc, nil
}

func parseStepDocument(raw []byte) (*StepDocument, error) {
	name, err := jsonparser.GetString(raw, "name")
	if err != nil {
		return nil, errors.Wrap(err, "unable to read step name")
	}

	stepDoc := &StepDocument{Name: name}

	if function, _, _, err := jsonparser.Get(raw, "function"); err == nil {
		fnDoc := &FunctionDocument{}
		fnDoc.Name, _ = jsonparser.GetString(function, "name")
		fnDoc.Code, _ = jsonparser.GetString(function, "code")
		fnDoc.Type, _ = jsonparser.GetString(function, "type")
		stepDoc.Function = fnDoc

		return stepDoc, nil
	}

	if transform, _, _, err := jsonparser.Get(raw, "transform"); err == nil {
		trDoc := &TransformDocument{}
		trDoc.ClassName, _ = jsonparser.GetString(transform, "class_name")
		trDoc.ModuleName, _ = jsonparser.GetString(transform, "module_name")
		stepDoc.Transform = trDoc

		return stepDoc, nil
	}

	return nil, errors.Wrapf(ErrInvalidStepDocument, "step %q", name)
}

// Dump writes the pipeline document as JSON.
func (p *Pipeline) Dump(w io.Writer) error {
	err := json.NewEncoder(w).Encode(p.ToDocument())
	if err != nil {
		return errors.Wrap(err, "unable to encode pipeline document")
	}

	return nil
}

// DumpYAML writes the pipeline document as YAML.
func (p *Pipeline) DumpYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(p.ToDocument())
	if err != nil {
		return errors.Wrap(err, "unable to encode pipeline document")
	}

	return enc.Close()
}

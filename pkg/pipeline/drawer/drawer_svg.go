// Package drawer renders pipeline dependency graphs as DOT documents.
package drawer

import (
	"io"
	"os"
	"sort"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	colors "gopkg.in/go-playground/colors.v1" //nolint

	"github.com/cortexfabric/go-pipeline/pkg/pipeline"
)

// SVGDrawer writes the dependency and step graph of a pipeline as a DOT
// document into the named file. Pipelines are colored by dependency depth:
// the deeper a dependency sits, the redder its vertex.
type SVGDrawer struct {
	graph       graph.Graph[string, string]
	svgFileName string
}

// NewSVGDrawer creates a new SVG drawer.
func NewSVGDrawer(svgFileName string) *SVGDrawer {
	return &SVGDrawer{
		svgFileName: svgFileName,
		graph:       graph.New(graph.StringHash, graph.Directed()),
	}
}

// Draw walks the dependency closure of p and writes the graph. Dependency
// pipelines point at the pipelines they feed; each pipeline's steps form a
// chain hanging off its vertex.
func (d *SVGDrawer) Draw(p *pipeline.Pipeline) error {
	depths, pipelines := dependencyDepths(p)

	maxDepth := 0
	for _, depth := range depths {
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	for name := range pipelines {
		hex, err := depthColor(depths[name], maxDepth)
		if err != nil {
			return err
		}

		err = d.graph.AddVertex(name,
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", hex),
		)
		if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return errors.Wrapf(err, "unable to add pipeline %q", name)
		}
	}

	for name, pipe := range pipelines {
		err := d.addSteps(name, pipe)
		if err != nil {
			return err
		}

		for _, dep := range pipe.Dependencies() {
			err := d.graph.AddEdge(dep.Name(), name)
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return errors.Wrapf(err, "unable to add edge from %s to %s", dep.Name(), name)
			}
		}
	}

	file, err := os.Create(d.svgFileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.svgFileName)
	}
	defer file.Close()

	err = dot(d.graph, file)
	if err != nil {
		return errors.Wrapf(err, "unable to render graph to %s", d.svgFileName)
	}

	return nil
}

func (d *SVGDrawer) addSteps(name string, pipe *pipeline.Pipeline) error {
	prev := name
	for _, info := range pipe.Steps() {
		stepVertex := name + "/" + info.Name

		err := d.graph.AddVertex(stepVertex, graph.VertexAttribute("shape", "box"))
		if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return errors.Wrapf(err, "unable to add step %q", stepVertex)
		}

		err = d.graph.AddEdge(prev, stepVertex)
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return errors.Wrapf(err, "unable to add edge from %s to %s", prev, stepVertex)
		}
		prev = stepVertex
	}

	return nil
}

// dependencyDepths walks the dependency closure breadth-first, so the depth
// recorded for each pipeline is the shortest distance from the root.
func dependencyDepths(p *pipeline.Pipeline) (map[string]int, map[string]*pipeline.Pipeline) {
	type item struct {
		pipe  *pipeline.Pipeline
		depth int
	}

	depths := make(map[string]int)
	pipelines := make(map[string]*pipeline.Pipeline)
	queue := []item{{pipe: p, depth: 0}}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if _, ok := pipelines[curr.pipe.Name()]; ok {
			continue
		}
		pipelines[curr.pipe.Name()] = curr.pipe
		depths[curr.pipe.Name()] = curr.depth

		for _, dep := range curr.pipe.Dependencies() {
			queue = append(queue, item{pipe: dep, depth: curr.depth + 1})
		}
	}

	return depths, pipelines
}

const maxRGB = 240

func depthColor(depth, maxDepth int) (string, error) {
	fraction := 0.0
	if maxDepth > 0 {
		fraction = float64(depth) / float64(maxDepth)
	}

	red := uint8(maxRGB * fraction)
	blue := uint8(maxRGB - maxRGB*fraction)

	rgb, err := colors.RGB(red, 0, blue) //nolint
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}

	return rgb.ToHEX().String(), nil
}

const dotTemplate = `strict {{.GraphType}} {
{{- range $s := .Statements}}
	"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}"{{else}}[ {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}}]{{end}};
{{- end}}
}
`

type description struct {
	GraphType    string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           string
	Target           string
	SourceAttributes map[string]string
}

func dot(g graph.Graph[string, string], w io.Writer) error {
	desc := description{
		GraphType:    "graph",
		EdgeOperator: "--",
	}
	if g.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := g.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to get adjacency map")
	}

	vertices := make([]string, 0, len(adjacencyMap))
	for vertex := range adjacencyMap {
		vertices = append(vertices, vertex)
	}
	sort.Strings(vertices)

	for _, vertex := range vertices {
		_, properties, err := g.VertexWithProperties(vertex)
		if err != nil {
			return errors.Wrapf(err, "unable to get properties of vertex %q", vertex)
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceAttributes: properties.Attributes,
		})

		targets := make([]string, 0, len(adjacencyMap[vertex]))
		for target := range adjacencyMap[vertex] {
			targets = append(targets, target)
		}
		sort.Strings(targets)

		for _, target := range targets {
			desc.Statements = append(desc.Statements, statement{
				Source: vertex,
				Target: target,
			})
		}
	}

	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "unable to parse template")
	}

	return tpl.Execute(w, desc)
}

var _ Drawer = (*SVGDrawer)(nil)

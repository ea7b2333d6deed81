package pipeline

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/cortexfabric/go-pipeline/internal/store"
)

// checkCycles walks the whole reachable dependency closure and rejects any
// cycle, not just a direct self-reference. The closure is replayed into a
// cycle-preventing directed graph; the first edge that would close a loop
// names the offending pair.
func (p *Pipeline) checkCycles() error {
	depGraph := graph.NewWithStore[string, string](graph.StringHash, store.NewMemoryStore[string, string](), graph.Directed(), graph.PreventCycles())

	stack := []*Pipeline{p}
	seen := make(map[string]struct{})

	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[curr.pipelineName]; ok {
			continue
		}
		seen[curr.pipelineName] = struct{}{}

		err := addVertex(depGraph, curr.pipelineName)
		if err != nil {
			return err
		}

		for _, name := range curr.depNames {
			dep := curr.deps[name]

			err := addVertex(depGraph, dep.pipelineName)
			if err != nil {
				return err
			}

			err = depGraph.AddEdge(curr.pipelineName, dep.pipelineName)
			switch {
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return errors.Wrapf(ErrCircularDependency, "dependency %q -> %q", curr.pipelineName, dep.pipelineName)
			case errors.Is(err, graph.ErrEdgeAlreadyExists):
				// same dependency reached through two paths
			case err != nil:
				return errors.Wrapf(err, "unable to add dependency edge %q -> %q", curr.pipelineName, dep.pipelineName)
			}

			stack = append(stack, dep)
		}
	}

	return nil
}

func addVertex(depGraph graph.Graph[string, string], name string) error {
	err := depGraph.AddVertex(name)
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrapf(err, "unable to add pipeline %q to the dependency graph", name)
	}

	return nil
}

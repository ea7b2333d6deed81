package drawer

import "github.com/cortexfabric/go-pipeline/pkg/pipeline"

// Drawer renders a pipeline's dependency and step graph.
type Drawer interface {
	Draw(p *pipeline.Pipeline) error
}

package engine

import (
	"github.com/nguyenopenclaw/qa-automator/pkg/graph"
)

// flowHintAdapter exposes the graph's scenario flow chains to the memory
// store without the memory package depending on the graph package.
type flowHintAdapter struct {
	graph *graph.Store
}

func (a flowHintAdapter) ScreenChain(scenarioID string) ([]string, bool) {
	hints, ok := a.graph.CollectFlowHints(scenarioID)
	if !ok || len(hints.ScreenChain) == 0 {
		return nil, false
	}
	return hints.ScreenChain, true
}

package rundto

import "github.com/awmpietro/golang-workflow-engine-case/internal/workflow"

// CreateGraphRequest carries either an explicit definition (nodes, edges,
// start_node, loop_condition) or Graphviz DOT source in graph_dot. DOT wins
// when both are present.
type CreateGraphRequest struct {
	Nodes         map[string]string       `json:"nodes,omitempty"`
	Edges         map[string]string       `json:"edges,omitempty"`
	StartNode     string                  `json:"start_node,omitempty"`
	LoopCondition *workflow.LoopCondition `json:"loop_condition,omitempty"`
	GraphDOT      string                  `json:"graph_dot,omitempty"`
}

func (r CreateGraphRequest) Definition() *workflow.GraphDef {
	return &workflow.GraphDef{
		Nodes:         r.Nodes,
		Edges:         r.Edges,
		StartNode:     r.StartNode,
		LoopCondition: r.LoopCondition,
	}
}

type CreateGraphResponse struct {
	GraphID string `json:"graph_id"`
}

type StartRunRequest struct {
	GraphID      string         `json:"graph_id"`
	InitialState map[string]any `json:"initial_state,omitempty"`
}

type StartRunResponse struct {
	RunID string `json:"run_id"`
}

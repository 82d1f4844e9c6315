// internal/workflow/model.go
package workflow

// GraphDef describes a pipeline: which tool runs at each node, the single
// successor of each node and where execution starts. Once stored it is
// immutable; runs only ever read it.
type GraphDef struct {
	Nodes         map[string]string `json:"nodes"`
	Edges         map[string]string `json:"edges"`
	StartNode     string            `json:"start_node"`
	LoopCondition *LoopCondition    `json:"loop_condition,omitempty"`
}

// Next is the deterministic transition function. ok=false means the node is
// terminal. Branching is intentionally not supported.
func (g *GraphDef) Next(node string) (string, bool) {
	next, ok := g.Edges[node]
	return next, ok
}

type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// RunRecord is the mutable execution instance of a graph. The engine is the
// only writer; everyone else observes snapshots through the store.
type RunRecord struct {
	State  map[string]any `json:"state"`
	Log    []string       `json:"log"`
	Status Status         `json:"status"`
}

func NewRunRecord(initial map[string]any) *RunRecord {
	if initial == nil {
		initial = map[string]any{}
	}
	return &RunRecord{
		State:  initial,
		Log:    []string{},
		Status: StatusRunning,
	}
}

// Clone deep-copies the record so cached copies never alias the engine's
// working state.
func (r *RunRecord) Clone() *RunRecord {
	if r == nil {
		return nil
	}
	logCopy := make([]string, len(r.Log))
	copy(logCopy, r.Log)
	return &RunRecord{
		State:  DeepCopyState(r.State),
		Log:    logCopy,
		Status: r.Status,
	}
}

// Tool transforms a state blob into the next one. Implementations must not
// mutate the input map and must be deterministic: the fixpoint detector
// compares consecutive states.
type Tool interface {
	Apply(state map[string]any) (map[string]any, error)
}

// ToolRegistry resolves a node's tool name at call time. An unknown name is
// a run-level failure, not an engine error.
type ToolRegistry interface {
	Lookup(name string) (Tool, bool)
}

// internal/workflow/engine_test.go
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore keeps records marshaled, like the real backends, and remembers
// every checkpoint write in order.
type fakeStore struct {
	mu          sync.Mutex
	graphs      map[string]*GraphDef
	runs        map[string][]byte
	checkpoints [][]byte
	updateErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		graphs: map[string]*GraphDef{},
		runs:   map[string][]byte{},
	}
}

func (s *fakeStore) LoadGraph(ctx context.Context, graphID string) (*GraphDef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[graphID]
	return g, ok, nil
}

func (s *fakeStore) LoadRun(ctx context.Context, runID string) (*RunRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.runs[runID]
	if !ok {
		return nil, false, nil
	}
	var r RunRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (s *fakeStore) UpdateRun(ctx context.Context, runID string, run *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	s.runs[runID] = b
	s.checkpoints = append(s.checkpoints, b)
	return nil
}

func (s *fakeStore) seedRun(runID string, initial map[string]any) {
	b, _ := json.Marshal(NewRunRecord(initial))
	s.mu.Lock()
	s.runs[runID] = b
	s.mu.Unlock()
}

func (s *fakeStore) mustLoadRun(t *testing.T, runID string) *RunRecord {
	t.Helper()
	r, ok, err := s.LoadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("run %s not found", runID)
	}
	return r
}

type toolFunc func(state map[string]any) (map[string]any, error)

func (f toolFunc) Apply(state map[string]any) (map[string]any, error) { return f(state) }

type fakeRegistry map[string]Tool

func (r fakeRegistry) Lookup(name string) (Tool, bool) {
	t, ok := r[name]
	return t, ok
}

// setKey returns a tool that writes a fixed key without mutating its input.
func setKey(key string, value any) Tool {
	return toolFunc(func(state map[string]any) (map[string]any, error) {
		out := DeepCopyState(state)
		out[key] = value
		return out, nil
	})
}

// counter returns a tool that always changes the state.
func counter() Tool {
	return toolFunc(func(state map[string]any) (map[string]any, error) {
		out := DeepCopyState(state)
		n, _ := asFloat(out["n"])
		out["n"] = n + 1
		return out, nil
	})
}

func identity() Tool {
	return toolFunc(func(state map[string]any) (map[string]any, error) {
		return DeepCopyState(state), nil
	})
}

func lastLog(t *testing.T, r *RunRecord) string {
	t.Helper()
	if len(r.Log) == 0 {
		t.Fatalf("expected a non-empty log")
	}
	return r.Log[len(r.Log)-1]
}

func TestEngine_Execute_GraphNotFound(t *testing.T) {
	st := newFakeStore()
	st.seedRun("r1", map[string]any{})

	e := NewEngine(st, fakeRegistry{})
	if err := e.Execute(context.Background(), "missing", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFailed {
		t.Fatalf("expected status failed, got %s", run.Status)
	}
	if lastLog(t, run) != "Graph not found during execution." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}
}

func TestEngine_Execute_ToolNotFound(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "nope"},
		Edges:     map[string]string{},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	e := NewEngine(st, fakeRegistry{})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFailed {
		t.Fatalf("expected status failed, got %s", run.Status)
	}
	if lastLog(t, run) != "Tool not found: nope" {
		t.Fatalf("unexpected log: %#v", run.Log)
	}
}

func TestEngine_Execute_ToolErrorFailsRun(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "boom"},
		Edges:     map[string]string{},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	reg := fakeRegistry{"boom": toolFunc(func(state map[string]any) (map[string]any, error) {
		return nil, fmt.Errorf("boom")
	})}

	e := NewEngine(st, reg)
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFailed {
		t.Fatalf("expected status failed, got %s", run.Status)
	}
	if lastLog(t, run) != "Exception: boom" {
		t.Fatalf("unexpected log: %#v", run.Log)
	}
}

func TestEngine_Execute_LinearChainFinishes(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "set_a", "b": "set_b"},
		Edges:     map[string]string{"a": "b"},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	reg := fakeRegistry{
		"set_a": setKey("a", true),
		"set_b": setKey("b", true),
	}

	e := NewEngine(st, reg)
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFinished {
		t.Fatalf("expected status finished, got %s", run.Status)
	}
	if run.State["a"] != true || run.State["b"] != true {
		t.Fatalf("unexpected state: %#v", run.State)
	}
	if lastLog(t, run) != "Execution finished." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}
}

func TestEngine_Execute_FixpointStops(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "set", "b": "set"},
		Edges:     map[string]string{"a": "b", "b": "a"},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	// first application changes the state, every later one is a no-op
	e := NewEngine(st, fakeRegistry{"set": setKey("done", true)})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFinished {
		t.Fatalf("expected status finished, got %s", run.Status)
	}
	if lastLog(t, run) != "State unchanged — stopping." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}

	steps := 0
	for _, line := range run.Log {
		if strings.HasPrefix(line, "Running node:") {
			steps++
		}
	}
	if steps != 2 {
		t.Fatalf("expected fixpoint at step 2, got %d steps", steps)
	}
}

func TestEngine_Execute_FixpointOnIdenticalFirstStep(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "id"},
		Edges:     map[string]string{"a": "a"},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{"x": 1.0})

	e := NewEngine(st, fakeRegistry{"id": identity()})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	// the first snapshot predates the first step, so an identity tool stops
	// immediately
	run := st.mustLoadRun(t, "r1")
	if lastLog(t, run) != "State unchanged — stopping." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}
}

func TestEngine_Execute_StepCapEnforced(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "count", "b": "count"},
		Edges:     map[string]string{"a": "b", "b": "a"},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	e := NewEngine(st, fakeRegistry{"count": counter()})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFinished {
		t.Fatalf("expected status finished, got %s", run.Status)
	}
	if lastLog(t, run) != "Execution finished." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}

	steps := 0
	for _, line := range run.Log {
		if strings.HasPrefix(line, "Running node:") {
			steps++
		}
	}
	if steps != DefaultMaxSteps {
		t.Fatalf("expected exactly %d steps, got %d", DefaultMaxSteps, steps)
	}
	if n, _ := asFloat(run.State["n"]); n != float64(DefaultMaxSteps) {
		t.Fatalf("expected n=%d, got %v", DefaultMaxSteps, run.State["n"])
	}
}

func TestEngine_Execute_StopConditionWinsOverFixpoint(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "set", "b": "set"},
		Edges:     map[string]string{"a": "b", "b": "a"},
		StartNode: "a",
		LoopCondition: &LoopCondition{
			Metric: "done",
			Op:     "==",
			Value:  1,
		},
	}
	st.seedRun("r1", map[string]any{})

	e := NewEngine(st, fakeRegistry{"set": setKey("done", 1.0)})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFinished {
		t.Fatalf("expected status finished, got %s", run.Status)
	}
	if lastLog(t, run) != "Loop stop condition satisfied." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}

	steps := 0
	for _, line := range run.Log {
		if strings.HasPrefix(line, "Running node:") {
			steps++
		}
	}
	if steps != 1 {
		t.Fatalf("expected stop at first step, got %d steps", steps)
	}
}

func TestEngine_Execute_MissingMetricNeverTriggers(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "set", "b": "set"},
		Edges:     map[string]string{"a": "b", "b": "a"},
		StartNode: "a",
		LoopCondition: &LoopCondition{
			Metric: "no.such.path",
			Op:     "==",
			Value:  0,
		},
	}
	st.seedRun("r1", map[string]any{})

	e := NewEngine(st, fakeRegistry{"set": setKey("done", true)})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	// terminates via fixpoint instead
	run := st.mustLoadRun(t, "r1")
	if lastLog(t, run) != "State unchanged — stopping." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}
}

func TestEngine_Execute_Deterministic(t *testing.T) {
	graph := &GraphDef{
		Nodes:     map[string]string{"a": "count", "b": "count"},
		Edges:     map[string]string{"a": "b", "b": "a"},
		StartNode: "a",
		LoopCondition: &LoopCondition{
			Metric: "n",
			Op:     ">=",
			Value:  5,
		},
	}

	final := func() *RunRecord {
		st := newFakeStore()
		st.graphs["g1"] = graph
		st.seedRun("r1", map[string]any{})
		e := NewEngine(st, fakeRegistry{"count": counter()})
		if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
			t.Fatal(err)
		}
		return st.mustLoadRun(t, "r1")
	}

	first := final()
	second := final()

	if !StateEqual(first.State, second.State) {
		t.Fatalf("states differ:\n%#v\n%#v", first.State, second.State)
	}
	if first.Status != second.Status || len(first.Log) != len(second.Log) {
		t.Fatalf("replay diverged")
	}
}

func TestEngine_Execute_CheckpointAfterEveryStep(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "count", "b": "count", "c": "count"},
		Edges:     map[string]string{"a": "b", "b": "c"},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	e := NewEngine(st, fakeRegistry{"count": counter()})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	// 3 per-step checkpoints plus the terminal one
	if len(st.checkpoints) != 4 {
		t.Fatalf("expected 4 checkpoint writes, got %d", len(st.checkpoints))
	}

	// every durable snapshot must be internally consistent: a step's log
	// entry and its state land in the same write
	for i, b := range st.checkpoints[:3] {
		var r RunRecord
		if err := json.Unmarshal(b, &r); err != nil {
			t.Fatal(err)
		}
		if n, _ := asFloat(r.State["n"]); n != float64(i+1) {
			t.Fatalf("checkpoint %d: expected n=%d, got %v", i, i+1, r.State["n"])
		}
		if got := r.Log[len(r.Log)-1]; !strings.HasPrefix(got, "Running node:") {
			t.Fatalf("checkpoint %d: unexpected trailing log %q", i, got)
		}
		if r.Status != StatusRunning {
			t.Fatalf("checkpoint %d: expected running, got %s", i, r.Status)
		}
	}
}

func TestEngine_Execute_TerminalRunIsLeftAlone(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "count"},
		Edges:     map[string]string{},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	e := NewEngine(st, fakeRegistry{"count": counter()})
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	before := st.mustLoadRun(t, "r1")
	writes := len(st.checkpoints)

	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	after := st.mustLoadRun(t, "r1")
	if len(st.checkpoints) != writes {
		t.Fatalf("expected no further checkpoint writes on a terminal run")
	}
	if !StateEqual(before.State, after.State) || before.Status != after.Status {
		t.Fatalf("terminal run was modified")
	}
}

func TestEngine_Execute_CancelledContextFailsRun(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "count", "b": "count"},
		Edges:     map[string]string{"a": "b", "b": "a"},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(st, fakeRegistry{"count": counter()})
	if err := e.Execute(ctx, "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	run := st.mustLoadRun(t, "r1")
	if run.Status != StatusFailed {
		t.Fatalf("expected status failed, got %s", run.Status)
	}
	if lastLog(t, run) != "Run cancelled." {
		t.Fatalf("unexpected log: %#v", run.Log)
	}
}

func TestEngine_Execute_StoreFailureIsFatal(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "count"},
		Edges:     map[string]string{},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})
	st.updateErr = fmt.Errorf("disk full")

	e := NewEngine(st, fakeRegistry{"count": counter()})
	if err := e.Execute(context.Background(), "g1", "r1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEngine_Execute_ObserverSeesEveryStep(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &GraphDef{
		Nodes:     map[string]string{"a": "count", "b": "count"},
		Edges:     map[string]string{"a": "b"},
		StartNode: "a",
	}
	st.seedRun("r1", map[string]any{})

	spy := &spyStepObserver{}
	e := NewEngine(st, fakeRegistry{"count": counter()}, WithStepObserver(spy))
	if err := e.Execute(context.Background(), "g1", "r1"); err != nil {
		t.Fatal(err)
	}

	if got := spy.Count(); got != 2 {
		t.Fatalf("expected 2 observed steps, got %d", got)
	}
}

type spyStepObserver struct {
	mu      sync.Mutex
	records []string
}

func (s *spyStepObserver) ObserveStep(runID, nodeID string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, runID+"/"+nodeID)
}

func (s *spyStepObserver) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

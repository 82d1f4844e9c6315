// internal/workflow/engine.go
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RunStore is the slice of the store the engine needs. Checkpoint writes
// must be atomic per run id; the engine assumes the store is available and
// lets store errors propagate as fatal.
type RunStore interface {
	LoadGraph(ctx context.Context, graphID string) (*GraphDef, bool, error)
	LoadRun(ctx context.Context, runID string) (*RunRecord, bool, error)
	UpdateRun(ctx context.Context, runID string, run *RunRecord) error
}

type Engine struct {
	store    RunStore
	tools    ToolRegistry
	maxSteps int
	observer StepObserver

	// at most one execution per run id; concurrent re-entry would interleave
	// checkpoint writes for the same record
	runLocks sync.Map
}

type EngineOption func(*Engine)

func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

func WithStepObserver(observer StepObserver) EngineOption {
	return func(e *Engine) {
		e.observer = observer
	}
}

// DefaultMaxSteps is the hard safety valve against accidental infinite
// cycles in user-authored graphs.
const DefaultMaxSteps = 200

func NewEngine(store RunStore, tools ToolRegistry, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		tools:    tools,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute drives one run to a terminal status, checkpointing the record
// after every step. Run-level failures (graph/tool missing, tool error) are
// recorded on the run and return nil; only store failures return an error.
func (e *Engine) Execute(ctx context.Context, graphID, runID string) error {
	unlock := e.lockRun(runID)
	defer unlock()

	run, ok, err := e.store.LoadRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	if run.Status.IsTerminal() {
		// terminal statuses are absorbing
		return nil
	}

	graph, ok, err := e.store.LoadGraph(ctx, graphID)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", graphID, err)
	}
	if !ok {
		run.Log = append(run.Log, "Graph not found during execution.")
		run.Status = StatusFailed
		return e.checkpoint(ctx, runID, run)
	}

	current := graph.StartNode
	steps := 0
	// the first snapshot predates the first step
	snapshot := DeepCopyState(run.State)

	for current != "" && steps < e.maxSteps {
		select {
		case <-ctx.Done():
			run.Log = append(run.Log, "Run cancelled.")
			run.Status = StatusFailed
			return e.checkpoint(context.WithoutCancel(ctx), runID, run)
		default:
		}

		steps++
		stepStart := time.Now()
		run.Log = append(run.Log, "Running node: "+current)

		toolName := graph.Nodes[current]
		tool, ok := e.tools.Lookup(toolName)
		if !ok {
			run.Log = append(run.Log, "Tool not found: "+toolName)
			run.Status = StatusFailed
			return e.checkpoint(ctx, runID, run)
		}

		next, err := tool.Apply(run.State)
		if err != nil {
			run.Log = append(run.Log, "Exception: "+err.Error())
			run.Status = StatusFailed
			return e.checkpoint(ctx, runID, run)
		}
		run.State = next

		if err := e.checkpoint(ctx, runID, run); err != nil {
			return err
		}
		e.observeStep(runID, current, time.Since(stepStart))

		// stop condition is checked before the fixpoint so a step that
		// satisfies both is reported as a condition stop
		if graph.LoopCondition.Satisfied(run.State) {
			run.Log = append(run.Log, "Loop stop condition satisfied.")
			run.Status = StatusFinished
			return e.checkpoint(ctx, runID, run)
		}

		if StateEqual(run.State, snapshot) {
			run.Log = append(run.Log, "State unchanged — stopping.")
			run.Status = StatusFinished
			return e.checkpoint(ctx, runID, run)
		}

		snapshot = DeepCopyState(run.State)
		current, _ = graph.Next(current)
	}

	run.Log = append(run.Log, "Execution finished.")
	run.Status = StatusFinished
	return e.checkpoint(ctx, runID, run)
}

func (e *Engine) checkpoint(ctx context.Context, runID string, run *RunRecord) error {
	if err := e.store.UpdateRun(ctx, runID, run); err != nil {
		return fmt.Errorf("checkpoint run %s: %w", runID, err)
	}
	return nil
}

// lockRun serializes executions per run id. Entries are kept for the
// process lifetime; dropping one while a second caller waits would let a
// third caller acquire a fresh mutex concurrently.
func (e *Engine) lockRun(runID string) func() {
	v, _ := e.runLocks.LoadOrStore(runID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) observeStep(runID, nodeID string, duration time.Duration) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveStep(runID, nodeID, duration)
}

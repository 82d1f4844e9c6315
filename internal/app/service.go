// internal/app/service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/awmpietro/golang-workflow-engine-case/internal/store"
	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

var ErrGraphNotFound = errors.New("graph_id not found")

type Runner interface {
	Execute(ctx context.Context, graphID, runID string) error
}

type GraphCompiler interface {
	Compile(dot string) (*workflow.GraphDef, error)
}

type Service struct {
	store    store.Store
	compiler GraphCompiler
	engine   Runner
}

func NewService(st store.Store, compiler GraphCompiler, engine Runner) *Service {
	return &Service{store: st, compiler: compiler, engine: engine}
}

// CreateGraph stores the definition as submitted. Node and start-node
// resolution is deferred to run time: a bad tool name or start node surfaces
// as a run-level failure, not a creation error.
func (s *Service) CreateGraph(ctx context.Context, def *workflow.GraphDef) (string, error) {
	if def == nil || len(def.Nodes) == 0 {
		return "", fmt.Errorf("nodes are required")
	}
	if def.StartNode == "" {
		return "", fmt.Errorf("start_node is required")
	}
	if def.Edges == nil {
		def.Edges = map[string]string{}
	}

	graphID := uuid.NewString()
	if err := s.store.SaveGraph(ctx, graphID, def); err != nil {
		return "", err
	}
	return graphID, nil
}

func (s *Service) CreateGraphFromDOT(ctx context.Context, dot string) (string, error) {
	if dot == "" {
		return "", fmt.Errorf("graph_dot is required")
	}
	def, err := s.compiler.Compile(dot)
	if err != nil {
		return "", err
	}
	return s.CreateGraph(ctx, def)
}

// StartRun creates the run record and executes it detached; callers poll
// GetRun for progress.
func (s *Service) StartRun(ctx context.Context, graphID string, initial map[string]any) (string, error) {
	runID, err := s.createRun(ctx, graphID, initial)
	if err != nil {
		return "", err
	}

	go func() {
		if err := s.engine.Execute(context.Background(), graphID, runID); err != nil {
			log.Printf("run %s: execute: %v", runID, err)
		}
	}()

	return runID, nil
}

// RunSync executes the run to a terminal status before returning the final
// record.
func (s *Service) RunSync(ctx context.Context, graphID string, initial map[string]any) (*workflow.RunRecord, error) {
	runID, err := s.createRun(ctx, graphID, initial)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Execute(ctx, graphID, runID); err != nil {
		return nil, err
	}

	run, ok, err := s.store.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run %s disappeared after execution", runID)
	}
	return run, nil
}

func (s *Service) GetRun(ctx context.Context, runID string) (*workflow.RunRecord, bool, error) {
	return s.store.LoadRun(ctx, runID)
}

func (s *Service) createRun(ctx context.Context, graphID string, initial map[string]any) (string, error) {
	if graphID == "" {
		return "", fmt.Errorf("graph_id is required")
	}

	// read-through: a cache miss falls back to the durable store and
	// repopulates the cache before the engine needs the graph
	_, ok, err := s.store.LoadGraph(ctx, graphID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrGraphNotFound
	}

	runID := uuid.NewString()
	run := workflow.NewRunRecord(initial)
	if err := s.store.SaveRun(ctx, runID, run); err != nil {
		return "", err
	}
	return runID, nil
}

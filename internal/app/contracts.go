package app

import (
	"context"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

type WorkflowService interface {
	CreateGraph(ctx context.Context, def *workflow.GraphDef) (string, error)
	CreateGraphFromDOT(ctx context.Context, dot string) (string, error)
	StartRun(ctx context.Context, graphID string, initial map[string]any) (string, error)
	RunSync(ctx context.Context, graphID string, initial map[string]any) (*workflow.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*workflow.RunRecord, bool, error)
}

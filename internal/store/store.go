// Package store persists graphs and runs as JSON blobs keyed by opaque ids.
// Backends: in-memory (dev/tests), sqlite and redis. Cached layers a
// read-through in-process cache over any backend.
package store

import (
	"context"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

// Store is the durable get/put contract the engine and service consume.
// Loads report absence with ok=false; errors are backend failures and are
// fatal to the caller. Writes must be atomic per id.
type Store interface {
	SaveGraph(ctx context.Context, graphID string, g *workflow.GraphDef) error
	LoadGraph(ctx context.Context, graphID string) (*workflow.GraphDef, bool, error)

	// SaveRun is the full overwrite used at creation; UpdateRun is the
	// per-checkpoint overwrite.
	SaveRun(ctx context.Context, runID string, r *workflow.RunRecord) error
	UpdateRun(ctx context.Context, runID string, r *workflow.RunRecord) error
	LoadRun(ctx context.Context, runID string) (*workflow.RunRecord, bool, error)
}

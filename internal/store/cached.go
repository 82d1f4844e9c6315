// internal/store/cached.go
package store

import (
	"context"
	"sync"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

// Cached layers an in-process cache over a durable store with read-through
// population. Graphs are immutable after creation, so they are cached
// forever with no invalidation. Runs are cached as deep copies: the cache
// never aliases the engine's working record.
type Cached struct {
	next Store

	mu     sync.RWMutex
	graphs map[string]*workflow.GraphDef
	runs   map[string]*workflow.RunRecord
}

func NewCached(next Store) *Cached {
	return &Cached{
		next:   next,
		graphs: map[string]*workflow.GraphDef{},
		runs:   map[string]*workflow.RunRecord{},
	}
}

func (c *Cached) SaveGraph(ctx context.Context, graphID string, g *workflow.GraphDef) error {
	if err := c.next.SaveGraph(ctx, graphID, g); err != nil {
		return err
	}
	c.mu.Lock()
	c.graphs[graphID] = g
	c.mu.Unlock()
	return nil
}

func (c *Cached) LoadGraph(ctx context.Context, graphID string) (*workflow.GraphDef, bool, error) {
	c.mu.RLock()
	g, ok := c.graphs[graphID]
	c.mu.RUnlock()
	if ok {
		return g, true, nil
	}

	g, ok, err := c.next.LoadGraph(ctx, graphID)
	if err != nil || !ok {
		return nil, false, err
	}
	c.mu.Lock()
	c.graphs[graphID] = g
	c.mu.Unlock()
	return g, true, nil
}

func (c *Cached) SaveRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	if err := c.next.SaveRun(ctx, runID, r); err != nil {
		return err
	}
	c.mu.Lock()
	c.runs[runID] = r.Clone()
	c.mu.Unlock()
	return nil
}

// UpdateRun is the checkpoint write. A run id unknown to the cache is a
// no-op: checkpoints only apply to runs this process created or loaded.
func (c *Cached) UpdateRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	c.mu.RLock()
	_, known := c.runs[runID]
	c.mu.RUnlock()
	if !known {
		return nil
	}

	if err := c.next.UpdateRun(ctx, runID, r); err != nil {
		return err
	}
	c.mu.Lock()
	c.runs[runID] = r.Clone()
	c.mu.Unlock()
	return nil
}

func (c *Cached) LoadRun(ctx context.Context, runID string) (*workflow.RunRecord, bool, error) {
	c.mu.RLock()
	r, ok := c.runs[runID]
	c.mu.RUnlock()
	if ok {
		return r.Clone(), true, nil
	}

	r, ok, err := c.next.LoadRun(ctx, runID)
	if err != nil || !ok {
		return nil, false, err
	}
	c.mu.Lock()
	c.runs[runID] = r.Clone()
	c.mu.Unlock()
	return r, true, nil
}

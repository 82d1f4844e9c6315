package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

// Memory keeps records as marshaled JSON, same as the durable backends, so
// a reloaded record goes through the exact round-trip a real store imposes.
type Memory struct {
	mu     sync.RWMutex
	graphs map[string][]byte
	runs   map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		graphs: map[string][]byte{},
		runs:   map[string][]byte{},
	}
}

func (m *Memory) SaveGraph(ctx context.Context, graphID string, g *workflow.GraphDef) error {
	b, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal graph %s: %w", graphID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graphID] = b
	return nil
}

func (m *Memory) LoadGraph(ctx context.Context, graphID string) (*workflow.GraphDef, bool, error) {
	m.mu.RLock()
	b, ok := m.graphs[graphID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var g workflow.GraphDef
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, false, fmt.Errorf("unmarshal graph %s: %w", graphID, err)
	}
	return &g, true, nil
}

func (m *Memory) SaveRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	return m.putRun(runID, r)
}

func (m *Memory) UpdateRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	return m.putRun(runID, r)
}

func (m *Memory) putRun(runID string, r *workflow.RunRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", runID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = b
	return nil
}

func (m *Memory) LoadRun(ctx context.Context, runID string) (*workflow.RunRecord, bool, error) {
	m.mu.RLock()
	b, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var r workflow.RunRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return &r, true, nil
}

// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

const defaultKeyPrefix = "wfengine:"

// Redis stores records as JSON strings under prefixed keys. A SET is atomic
// per key, which covers the per-run checkpoint atomicity requirement.
type Redis struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) graphKey(graphID string) string {
	return s.keyPrefix + "graph:" + graphID
}

func (s *Redis) runKey(runID string) string {
	return s.keyPrefix + "run:" + runID
}

func (s *Redis) SaveGraph(ctx context.Context, graphID string, g *workflow.GraphDef) error {
	return s.set(ctx, s.graphKey(graphID), g)
}

func (s *Redis) LoadGraph(ctx context.Context, graphID string) (*workflow.GraphDef, bool, error) {
	var g workflow.GraphDef
	ok, err := s.get(ctx, s.graphKey(graphID), &g)
	if err != nil || !ok {
		return nil, false, err
	}
	return &g, true, nil
}

func (s *Redis) SaveRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	return s.set(ctx, s.runKey(runID), r)
}

func (s *Redis) UpdateRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	return s.set(ctx, s.runKey(runID), r)
}

func (s *Redis) LoadRun(ctx context.Context, runID string) (*workflow.RunRecord, bool, error) {
	var r workflow.RunRecord
	ok, err := s.get(ctx, s.runKey(runID), &r)
	if err != nil || !ok {
		return nil, false, err
	}
	return &r, true, nil
}

func (s *Redis) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Redis) get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

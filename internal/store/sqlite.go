// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

// SQLite stores graphs and runs as JSON strings for portability, one table
// each, keyed by id.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS graphs (
		graph_id TEXT PRIMARY KEY,
		graph_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		run_json TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) SaveGraph(ctx context.Context, graphID string, g *workflow.GraphDef) error {
	b, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal graph %s: %w", graphID, err)
	}
	_, err = s.db.ExecContext(ctx,
		"REPLACE INTO graphs (graph_id, graph_json) VALUES (?, ?)", graphID, string(b))
	if err != nil {
		return fmt.Errorf("save graph %s: %w", graphID, err)
	}
	return nil
}

func (s *SQLite) LoadGraph(ctx context.Context, graphID string) (*workflow.GraphDef, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT graph_json FROM graphs WHERE graph_id = ?", graphID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load graph %s: %w", graphID, err)
	}
	var g workflow.GraphDef
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, false, fmt.Errorf("unmarshal graph %s: %w", graphID, err)
	}
	return &g, true, nil
}

func (s *SQLite) SaveRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", runID, err)
	}
	_, err = s.db.ExecContext(ctx,
		"REPLACE INTO runs (run_id, run_json, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		runID, string(b))
	if err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	return nil
}

func (s *SQLite) UpdateRun(ctx context.Context, runID string, r *workflow.RunRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", runID, err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE runs SET run_json = ?, updated_at = CURRENT_TIMESTAMP WHERE run_id = ?",
		string(b), runID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	return nil
}

func (s *SQLite) LoadRun(ctx context.Context, runID string) (*workflow.RunRecord, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT run_json FROM runs WHERE run_id = ?", runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load run %s: %w", runID, err)
	}
	var r workflow.RunRecord
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return &r, true, nil
}

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run records one analysis of a project.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	ContentHash string    `json:"content_hash"`
	Models      int       `json:"models"`
	Edges       int       `json:"edges"`
	Cycles      int       `json:"cycles"`
	Warnings    int       `json:"warnings"`
}

// RunStats are the counts stored with a run.
type RunStats struct {
	ContentHash string
	Models      int
	Edges       int
	Cycles      int
	Warnings    int
}

// RecordRun stores a new run started now.
func (s *Store) RecordRun(ctx context.Context, stats RunStats) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	run := &Run{
		ID:          generateID(),
		StartedAt:   s.now().UTC(),
		ContentHash: stats.ContentHash,
		Models:      stats.Models,
		Edges:       stats.Edges,
		Cycles:      stats.Cycles,
		Warnings:    stats.Warnings,
	}
	s.logger.Debug("recording run", "id", run.ID, "models", run.Models, "edges", run.Edges)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, content_hash, model_count, edge_count, cycle_count, warning_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), run.ContentHash, run.Models, run.Edges, run.Cycles, run.Warnings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

const selectRun = `SELECT id, started_at, content_hash, model_count, edge_count, cycle_count, warning_count FROM runs`

// LatestRun returns the most recent run, or nil when none exists.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		started int64
	)
	if err := row.Scan(&run.ID, &started, &run.ContentHash, &run.Models, &run.Edges, &run.Cycles, &run.Warnings); err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(0, started).UTC()
	return &run, nil
}

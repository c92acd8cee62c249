package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses recorded in the journal.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusTimedOut  = "timed_out"
)

// RunRecord is one journaled recipe execution.
type RunRecord struct {
	ID         string    `json:"id"`
	Recipe     string    `json:"recipe"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	StderrTail string    `json:"stderr_tail,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Journal records recipe runs in the run_log table.
type Journal struct {
	db *sql.DB
}

// NewJournal creates a Journal backed by db.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record inserts a completed run and returns its generated id.
func (j *Journal) Record(ctx context.Context, rec RunRecord) (string, error) {
	if rec.Recipe == "" {
		return "", fmt.Errorf("recipe name is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_log (id, recipe, status, exit_code, duration_ms, stderr_tail, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Recipe, rec.Status, rec.ExitCode, rec.DurationMS, rec.StderrTail,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return rec.ID, nil
}

// Recent returns the latest runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, recipe, status, exit_code, duration_ms, COALESCE(stderr_tail, ''), started_at, finished_at
		 FROM run_log ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &rec.Recipe, &rec.Status, &rec.ExitCode,
			&rec.DurationMS, &rec.StderrTail, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentByRecipe returns the latest runs of one recipe, newest first.
func (j *Journal) RecentByRecipe(ctx context.Context, recipe string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, recipe, status, exit_code, duration_ms, COALESCE(stderr_tail, ''), started_at, finished_at
		 FROM run_log WHERE recipe = ? ORDER BY started_at DESC LIMIT ?`, recipe, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &rec.Recipe, &rec.Status, &rec.ExitCode,
			&rec.DurationMS, &rec.StderrTail, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Package runlog keeps an append-only SQLite record of pipeline run outcomes.
// Briefing content is never stored, only what happened.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RobinCoderZhao/nk-briefing/pkg/storage"
)

// Schema is the SQLite schema for the run log.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    run_trigger TEXT NOT NULL,
    language    TEXT NOT NULL,
    status      TEXT NOT NULL,
    items       INTEGER DEFAULT 0,
    post_url    TEXT,
    error       TEXT,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_language ON runs(language);
`

// timeLayout has fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses.
const (
	StatusPreviewed = "previewed"
	StatusPublished = "published"
	StatusNoData    = "no_data"
	StatusFailed    = "failed"
)

// Entry is one finished run.
type Entry struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Language   string    `json:"language"`
	Status     string    `json:"status"`
	Items      int       `json:"items"`
	PostURL    string    `json:"post_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store persists run entries.
type Store struct {
	db *storage.DB
}

// Open opens (or creates) the run log at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := storage.Open(storage.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if err := db.Migrate(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run log schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends an entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, run_trigger, language, status, items, post_url, error, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.Trigger, e.Language, e.Status, e.Items, e.PostURL, e.Error,
			e.StartedAt.UTC().Format(timeLayout), e.FinishedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert run %s: %w", e.ID, err)
		}
		return nil
	})
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_trigger, language, status, items, COALESCE(post_url, ''), COALESCE(error, ''), started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished string
		if err := rows.Scan(&e.ID, &e.Trigger, &e.Language, &e.Status, &e.Items, &e.PostURL, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt, _ = time.Parse(timeLayout, started)
		e.FinishedAt, _ = time.Parse(timeLayout, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

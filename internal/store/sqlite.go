package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/runlog"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	pipeline_id   TEXT NOT NULL,
	document_id   TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'queued',
	overall_score REAL NOT NULL DEFAULT 0,
	detail        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pipelines (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	steps      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runlog_cache (
	run_id     TEXT PRIMARY KEY,
	entries    TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline_id);
CREATE INDEX IF NOT EXISTS idx_runlog_cache_expires_at ON runlog_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRunDetail(ctx context.Context, detail *model.RunDetail) error {
	now := time.Now().UTC()
	if detail.Run.ID == "" {
		detail.Run.ID = uuid.New().String()
	}
	if detail.Run.CreatedAt.IsZero() {
		detail.Run.CreatedAt = now
	}
	detail.Run.UpdatedAt = now

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run detail")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline_id, document_id, status, overall_score, detail, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			overall_score = excluded.overall_score,
			detail = excluded.detail,
			updated_at = excluded.updated_at`,
		detail.Run.ID, detail.Run.PipelineID, detail.Run.DocumentID,
		string(detail.Run.Status), detail.Run.OverallScore, string(detailJSON),
		detail.Run.CreatedAt, detail.Run.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save run %s", detail.Run.ID)
}

func (s *SQLiteStore) GetRunDetail(ctx context.Context, runID string) (*model.RunDetail, error) {
	var detailJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT detail FROM runs WHERE id = ?`, runID,
	).Scan(&detailJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	var detail model.RunDetail
	if err := json.Unmarshal([]byte(detailJSON), &detail); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal run %s", runID)
	}
	return &detail, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunCore, error) {
	query := `SELECT detail FROM runs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.PipelineID != "" {
		query += ` AND pipeline_id = ?`
		args = append(args, filter.PipelineID)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunCore
	for rows.Next() {
		var detailJSON string
		if err := rows.Scan(&detailJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var detail model.RunDetail
		if err := json.Unmarshal([]byte(detailJSON), &detail); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run")
		}
		runs = append(runs, detail.Run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) SavePipeline(ctx context.Context, p *model.Pipeline) error {
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pipeline steps")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipelines (id, name, steps, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, steps = excluded.steps, updated_at = excluded.updated_at`,
		p.ID, p.Name, string(stepsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save pipeline %s", p.ID)
}

func (s *SQLiteStore) GetPipeline(ctx context.Context, id string) (*model.Pipeline, error) {
	var (
		name      string
		stepsJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, steps FROM pipelines WHERE id = ?`, id,
	).Scan(&name, &stepsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pipeline %s", id)
	}

	p := &model.Pipeline{ID: id, Name: name}
	if err := json.Unmarshal([]byte(stepsJSON), &p.Steps); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal pipeline %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) GetCachedRunLog(ctx context.Context, runID string) ([]runlog.Entry, error) {
	var entriesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT entries FROM runlog_cache WHERE run_id = ? AND expires_at > ?`,
		runID, time.Now().UTC(),
	).Scan(&entriesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached run log %s", runID)
	}

	var entries []runlog.Entry
	if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal cached run log %s", runID)
	}
	return entries, nil
}

func (s *SQLiteStore) SetCachedRunLog(ctx context.Context, runID string, entries []runlog.Entry, ttl time.Duration) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run log")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runlog_cache (run_id, entries, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET entries = excluded.entries, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		runID, string(entriesJSON), now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: cache run log %s", runID)
}

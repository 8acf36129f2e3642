package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/runlog"
)

// Pool is the subset of pgxpool.Pool the store uses. Satisfied by
// pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	pipeline_id   TEXT NOT NULL,
	document_id   TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'queued',
	overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	detail        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pipelines (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	steps      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runlog_cache (
	run_id     TEXT PRIMARY KEY,
	entries    JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline_id);
CREATE INDEX IF NOT EXISTS idx_runlog_cache_expires_at ON runlog_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRunDetail(ctx context.Context, detail *model.RunDetail) error {
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
		return eris.Wrap(err, "postgres: marshal run detail")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, pipeline_id, document_id, status, overall_score, detail, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			overall_score = EXCLUDED.overall_score,
			detail = EXCLUDED.detail,
			updated_at = EXCLUDED.updated_at`,
		detail.Run.ID, detail.Run.PipelineID, detail.Run.DocumentID,
		string(detail.Run.Status), detail.Run.OverallScore, detailJSON,
		detail.Run.CreatedAt, detail.Run.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save run %s", detail.Run.ID)
}

func (s *PostgresStore) GetRunDetail(ctx context.Context, runID string) (*model.RunDetail, error) {
	var detailJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT detail FROM runs WHERE id = $1`, runID,
	).Scan(&detailJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	var detail model.RunDetail
	if err := json.Unmarshal(detailJSON, &detail); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal run %s", runID)
	}
	return &detail, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunCore, error) {
	query := `SELECT detail FROM runs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.PipelineID != "" {
		args = append(args, filter.PipelineID)
		query += ` AND pipeline_id = $` + strconv.Itoa(len(args))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter.UTC())
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunCore
	for rows.Next() {
		var detailJSON []byte
		if err := rows.Scan(&detailJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var detail model.RunDetail
		if err := json.Unmarshal(detailJSON, &detail); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run")
		}
		runs = append(runs, detail.Run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func (s *PostgresStore) SavePipeline(ctx context.Context, p *model.Pipeline) error {
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pipeline steps")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pipelines (id, name, steps, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, steps = EXCLUDED.steps, updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, stepsJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save pipeline %s", p.ID)
}

func (s *PostgresStore) GetPipeline(ctx context.Context, id string) (*model.Pipeline, error) {
	var (
		name      string
		stepsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT name, steps FROM pipelines WHERE id = $1`, id,
	).Scan(&name, &stepsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pipeline %s", id)
	}

	p := &model.Pipeline{ID: id, Name: name}
	if err := json.Unmarshal(stepsJSON, &p.Steps); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal pipeline %s", id)
	}
	return p, nil
}

func (s *PostgresStore) GetCachedRunLog(ctx context.Context, runID string) ([]runlog.Entry, error) {
	var entriesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT entries FROM runlog_cache WHERE run_id = $1 AND expires_at > now()`, runID,
	).Scan(&entriesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cached run log %s", runID)
	}

	var entries []runlog.Entry
	if err := json.Unmarshal(entriesJSON, &entries); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal cached run log %s", runID)
	}
	return entries, nil
}

func (s *PostgresStore) SetCachedRunLog(ctx context.Context, runID string, entries []runlog.Entry, ttl time.Duration) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run log")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runlog_cache (run_id, entries, fetched_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id) DO UPDATE SET entries = EXCLUDED.entries, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`,
		runID, entriesJSON, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: cache run log %s", runID)
}

package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/runlog"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs. A zero CreatedAfter
// means no time window.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	PipelineID   string          `json:"pipeline_id,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for consolidated runs,
// pipeline definitions, and the raw-log fallback cache.
type Store interface {
	// Runs
	SaveRunDetail(ctx context.Context, detail *model.RunDetail) error
	GetRunDetail(ctx context.Context, runID string) (*model.RunDetail, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunCore, error)

	// Pipeline definitions
	SavePipeline(ctx context.Context, p *model.Pipeline) error
	GetPipeline(ctx context.Context, id string) (*model.Pipeline, error)

	// Raw-log cache (last-seen copy used when the backend is unreachable)
	GetCachedRunLog(ctx context.Context, runID string) ([]runlog.Entry, error)
	SetCachedRunLog(ctx context.Context, runID string, entries []runlog.Entry, ttl time.Duration) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the given driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

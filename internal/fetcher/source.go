// Package fetcher retrieves raw run logs from the execution backend.
// The engines themselves never do I/O; this package is the external
// collaborator that materializes their input.
package fetcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/runlog"
)

// RunSource yields the raw log of a run.
type RunSource interface {
	FetchRunLog(ctx context.Context, runID string) ([]runlog.Entry, error)
}

// Cache holds last-seen raw logs. Implemented by the store.
type Cache interface {
	GetCachedRunLog(ctx context.Context, runID string) ([]runlog.Entry, error)
	SetCachedRunLog(ctx context.Context, runID string, entries []runlog.Entry, ttl time.Duration) error
}

// CachingSource wraps a RunSource with a last-seen cache: successful
// fetches refresh the cache, and when every backend endpoint fails the
// cached copy is served instead. It errors only when no source yields
// a parseable payload.
type CachingSource struct {
	src   RunSource
	cache Cache
	ttl   time.Duration
}

// NewCachingSource wraps src with the given cache.
func NewCachingSource(src RunSource, cache Cache, ttl time.Duration) *CachingSource {
	return &CachingSource{src: src, cache: cache, ttl: ttl}
}

func (c *CachingSource) FetchRunLog(ctx context.Context, runID string) ([]runlog.Entry, error) {
	entries, err := c.src.FetchRunLog(ctx, runID)
	if err == nil {
		if cacheErr := c.cache.SetCachedRunLog(ctx, runID, entries, c.ttl); cacheErr != nil {
			zap.L().Warn("fetcher: failed to refresh run log cache",
				zap.String("run_id", runID),
				zap.Error(cacheErr),
			)
		}
		return entries, nil
	}

	cached, cacheErr := c.cache.GetCachedRunLog(ctx, runID)
	if cacheErr == nil {
		zap.L().Warn("fetcher: backend unavailable, serving cached run log",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return cached, nil
	}

	return nil, eris.Wrapf(err, "fetcher: run %s unavailable from backend and cache", runID)
}

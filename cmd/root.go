package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/config"
	"github.com/claimsight/claimsight/internal/fetcher"
	"github.com/claimsight/claimsight/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "claimsight",
	Short: "Run-result consolidation for document-analysis pipelines",
	Long:  "Fetches raw pipeline run logs, consolidates repeated model attempts into final values with confidence scores, and lays out branching pipeline topologies.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// newRunSource builds the run-log source chain: rate-limited HTTP with
// endpoint fallback, backed by the store's last-seen cache.
func newRunSource(st store.Store) fetcher.RunSource {
	src := fetcher.NewHTTPSource(fetcher.HTTPOptions{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    time.Duration(cfg.API.TimeoutSecs) * time.Second,
		MaxRetries: cfg.API.MaxRetries,
		RatePerSec: cfg.API.RatePerSec,
		Burst:      cfg.API.Burst,
	})
	ttl := time.Duration(cfg.Store.CacheTTLHours) * time.Hour
	return fetcher.NewCachingSource(src, st, ttl)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

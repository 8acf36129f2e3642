package main

import (
	"bufio"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claimsight/claimsight/internal/consolidate"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/runlog"
)

var batchIDFile string

var batchCmd = &cobra.Command{
	Use:   "batch [run-id...]",
	Short: "Consolidate many runs concurrently",
	Long:  "Fetches and consolidates each run with bounded concurrency. A failing run is logged and skipped, never fatal for the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runIDs := args
		if batchIDFile != "" {
			fromFile, err := readRunIDs(batchIDFile)
			if err != nil {
				return err
			}
			runIDs = append(runIDs, fromFile...)
		}
		if len(runIDs) == 0 {
			return eris.New("batch: no run IDs given")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		source := newRunSource(st)

		var done, failed atomic.Int64

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentRuns)

		for _, runID := range runIDs {
			g.Go(func() error {
				entries, err := source.FetchRunLog(gCtx, runID)
				if err != nil {
					failed.Add(1)
					zap.L().Error("batch: fetch failed",
						zap.String("run_id", runID),
						zap.Error(err),
					)
					return nil
				}

				detail := &model.RunDetail{
					Run:   model.RunCore{ID: runID, Status: model.RunStatusRunning},
					Steps: runlog.ParseSteps(entries),
				}
				consolidate.Aggregate(detail)

				if err := st.SaveRunDetail(gCtx, detail); err != nil {
					failed.Add(1)
					zap.L().Error("batch: save failed",
						zap.String("run_id", runID),
						zap.Error(err),
					)
					return nil
				}

				done.Add(1)
				zap.L().Info("batch: run consolidated",
					zap.String("run_id", runID),
					zap.Float64("overall_score", detail.Run.OverallScore),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("batch: complete",
			zap.Int64("consolidated", done.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

// readRunIDs reads one run ID per line, skipping blanks and # comments.
func readRunIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, eris.Wrapf(scanner.Err(), "batch: read %s", path)
}

func init() {
	batchCmd.Flags().StringVarP(&batchIDFile, "file", "f", "", "file with one run ID per line")
	rootCmd.AddCommand(batchCmd)
}

package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/consolidate"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/runlog"
)

var (
	consolidateFile       string
	consolidateRunID      string
	consolidatePipelineID string
	consolidateDocumentID string
	consolidateSave       bool
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Consolidate a run's raw attempt log into final values",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		detail, err := buildRunDetail(ctx)
		if err != nil {
			return err
		}

		consolidate.Aggregate(detail)

		if consolidateSave {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SaveRunDetail(ctx, detail); err != nil {
				return err
			}
			zap.L().Info("consolidate: run saved",
				zap.String("run_id", detail.Run.ID),
				zap.Float64("overall_score", detail.Run.OverallScore),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(detail), "consolidate: encode output")
	},
}

// buildRunDetail materializes the raw log either from a local file or
// from the backend (with cache fallback) and wraps it in a RunDetail.
func buildRunDetail(ctx context.Context) (*model.RunDetail, error) {
	var entries []runlog.Entry

	switch {
	case consolidateFile != "":
		data, err := os.ReadFile(consolidateFile)
		if err != nil {
			return nil, eris.Wrapf(err, "consolidate: read %s", consolidateFile)
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, eris.Wrapf(err, "consolidate: parse %s", consolidateFile)
		}

	case consolidateRunID != "":
		st, err := openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		entries, err = newRunSource(st).FetchRunLog(ctx, consolidateRunID)
		if err != nil {
			return nil, err
		}

	default:
		return nil, eris.New("consolidate: either --file or --run is required")
	}

	return &model.RunDetail{
		Run: model.RunCore{
			ID:         consolidateRunID,
			PipelineID: consolidatePipelineID,
			DocumentID: consolidateDocumentID,
			Status:     model.RunStatusRunning,
		},
		Steps: runlog.ParseSteps(entries),
	}, nil
}

func init() {
	consolidateCmd.Flags().StringVarP(&consolidateFile, "file", "f", "", "raw run log JSON file")
	consolidateCmd.Flags().StringVar(&consolidateRunID, "run", "", "run ID to fetch from the backend")
	consolidateCmd.Flags().StringVar(&consolidatePipelineID, "pipeline", "", "pipeline ID to record on the run")
	consolidateCmd.Flags().StringVar(&consolidateDocumentID, "document", "", "source document ID to record on the run")
	consolidateCmd.Flags().BoolVar(&consolidateSave, "save", false, "persist the consolidated run to the store")
	rootCmd.AddCommand(consolidateCmd)
}

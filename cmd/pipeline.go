package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/model"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage stored pipeline definitions",
}

var pipelineImportCmd = &cobra.Command{
	Use:   "import <pipeline.yaml>",
	Short: "Import a pipeline definition into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := model.LoadPipeline(args[0])
		if err != nil {
			return err
		}
		if p.ID == "" {
			return eris.Errorf("pipeline import: %s has no id", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SavePipeline(ctx, p); err != nil {
			return err
		}

		zap.L().Info("pipeline imported",
			zap.String("pipeline_id", p.ID),
			zap.Int("steps", len(p.Steps)),
		)
		return nil
	},
}

func init() {
	pipelineCmd.AddCommand(pipelineImportCmd)
	rootCmd.AddCommand(pipelineCmd)
}

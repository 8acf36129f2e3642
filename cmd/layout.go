package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/claimsight/claimsight/internal/layout"
	"github.com/claimsight/claimsight/internal/model"
)

var (
	layoutFile       string
	layoutPipelineID string
	layoutJSON       bool
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Lay out a pipeline's branching topology",
	Long:  "Turns an ordered pipeline step list into depth-annotated rows with hierarchical numbering, flagging structural problems as warnings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var p *model.Pipeline
		switch {
		case layoutFile != "":
			loaded, err := model.LoadPipeline(layoutFile)
			if err != nil {
				return err
			}
			p = loaded

		case layoutPipelineID != "":
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			loaded, err := st.GetPipeline(ctx, layoutPipelineID)
			if err != nil {
				return eris.Wrap(err, "layout")
			}
			p = loaded

		default:
			return eris.New("layout: either --file or --pipeline is required")
		}

		rows := layout.Rows(p.Steps)

		if layoutJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		formatLayout(os.Stdout, rows)
		return nil
	},
}

// formatLayout writes an indented text rendering of the layout rows.
func formatLayout(out io.Writer, rows []model.LayoutRow) {
	for _, row := range rows {
		name := row.Step.Label
		if name == "" {
			name = row.Step.ID
		}
		fmt.Fprintf(out, "%s%s  %s (%s)\n",
			strings.Repeat("    ", row.Depth), row.Label, name, row.Step.Type)
		for _, w := range row.Warnings {
			fmt.Fprintf(out, "%s  ! %s\n", strings.Repeat("    ", row.Depth), w)
		}
	}
}

func init() {
	layoutCmd.Flags().StringVarP(&layoutFile, "file", "f", "", "pipeline definition YAML file")
	layoutCmd.Flags().StringVar(&layoutPipelineID, "pipeline", "", "pipeline ID to load from the store")
	layoutCmd.Flags().BoolVar(&layoutJSON, "json", false, "emit rows as JSON")
	rootCmd.AddCommand(layoutCmd)
}

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/claimsight/claimsight/internal/rule"
)

var labelScore float64

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Pick a display label for a score using the configured rules",
	Long:  "Evaluates the configured label rules (e.g. \"score >= 0.6\") against a score. Rules are parsed, never executed as code.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Labels) == 0 {
			return eris.New("label: no label rules configured")
		}

		set, err := rule.NewLabelSet(cfg.Labels)
		if err != nil {
			return err
		}

		label, ok := set.Pick(labelScore)
		if !ok {
			fmt.Println("(no label matched)")
			return nil
		}
		fmt.Println(label)
		return nil
	},
}

func init() {
	labelCmd.Flags().Float64Var(&labelScore, "score", 0, "score to evaluate the rules against")
	_ = labelCmd.MarkFlagRequired("score")
	rootCmd.AddCommand(labelCmd)
}

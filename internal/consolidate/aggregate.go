// Package consolidate reduces the repeated model attempts of a pipeline
// run to one authoritative value and confidence per step, and rolls the
// per-step results up into run-level final maps.
//
// Everything in this package is a pure, idempotent transform over
// already-materialized data: no I/O, no shared state, safe to call
// concurrently from multiple goroutines.
package consolidate

import (
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/model"
)

// Aggregate walks a run's step log in order, consolidates each step by
// type, and assembles the run-level final_extraction / final_scores /
// final_decisions maps and overall score. A step that cannot be
// consolidated is recorded on that step's status and never aborts the
// rest of the run.
func Aggregate(detail *model.RunDetail) {
	run := &detail.Run
	run.FinalExtraction = make(map[string]any)
	run.FinalScores = make(map[string]float64)
	run.FinalDecisions = make(map[string]bool)

	for i := range detail.Steps {
		step := &detail.Steps[i]

		if step.Status == model.StepStatusUnparseable {
			// The log decoder already recorded the failure; keep it
			// visible instead of merging a placeholder result.
			zap.L().Warn("consolidate: skipping unparseable step",
				zap.String("run_id", run.ID),
				zap.Int("step", step.Index),
			)
			continue
		}

		if step.FinalKey == "" && step.Def != nil {
			step.FinalKey = model.Slugify(step.Def.Prompt)
		}

		switch step.Type {
		case model.StepExtraction:
			if step.FinalKey == "" {
				markUnkeyed(step, run.ID)
				continue
			}
			ConsolidateExtraction(step)
			run.FinalExtraction[step.FinalKey] = step.FinalValue

		case model.StepScore:
			if step.FinalKey == "" {
				markUnkeyed(step, run.ID)
				continue
			}
			ConsolidateBoolean(step)
			score := 0.0
			if v, _ := step.FinalValue.(bool); v {
				score = 1.0
			}
			run.FinalScores[step.FinalKey] = score

		case model.StepDecision:
			if step.FinalKey == "" {
				markUnkeyed(step, run.ID)
				continue
			}
			ConsolidateBoolean(step)
			v, _ := step.FinalValue.(bool)
			run.FinalDecisions[step.FinalKey] = v

		case model.StepMeta:
			// Bookkeeping only, nothing to consolidate.

		default:
			step.Status = model.StepStatusUnparseable
			zap.L().Warn("consolidate: unknown step type",
				zap.String("run_id", run.ID),
				zap.Int("step", step.Index),
				zap.String("type", string(step.Type)),
			)
		}
	}

	run.OverallScore = OverallScore(detail.Steps)
	run.Status = model.RunStatusConsolidated
}

func markUnkeyed(step *model.Step, runID string) {
	step.Status = model.StepStatusUnparseable
	zap.L().Warn("consolidate: step has no final key",
		zap.String("run_id", runID),
		zap.Int("step", step.Index),
	)
}

// OverallScore computes weighted agreement over the consolidated score
// and decision steps: weight times positive-label indicator, summed and
// normalized by total weight. A zero weight sum yields 0.
func OverallScore(steps []model.Step) float64 {
	totalWeight := 0.0
	score := 0.0

	for i := range steps {
		step := &steps[i]
		if step.Type != model.StepScore && step.Type != model.StepDecision {
			continue
		}
		if step.Status != model.StepStatusConsolidated {
			// Empty or unparseable steps mean "unknown", not "no".
			continue
		}
		w := step.Weight()
		totalWeight += w
		if v, _ := step.FinalValue.(bool); v {
			score += w
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return round4(score / totalWeight)
}

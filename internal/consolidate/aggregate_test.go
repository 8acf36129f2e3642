package consolidate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/runlog"
)

func sampleDetail() *model.RunDetail {
	return &model.RunDetail{
		Run: model.RunCore{ID: "run-1", Status: model.RunStatusRunning},
		Steps: []model.Step{
			{
				Index:    0,
				Type:     model.StepExtraction,
				FinalKey: "schadennummer",
				Attempts: []model.Attempt{
					{Index: 0, Value: "SCH-2024/001 234"},
					{Index: 1, Value: "2024001234"},
				},
			},
			{
				Index:    1,
				Type:     model.StepScore,
				FinalKey: "unterlagen_vollstaendig",
				Attempts: []model.Attempt{
					{Index: 0, Value: "ja"},
					{Index: 1, Value: true},
					{Index: 2, Value: "nein"},
				},
			},
			{
				Index:    2,
				Type:     model.StepDecision,
				FinalKey: "deckung_erteilen",
				Attempts: []model.Attempt{
					{Index: 0, Value: false},
					{Index: 1, Value: "nein"},
				},
			},
			{Index: 3, Type: model.StepMeta},
		},
	}
}

func TestAggregate_PopulatesFinalMaps(t *testing.T) {
	detail := sampleDetail()

	Aggregate(detail)

	require.Contains(t, detail.Run.FinalExtraction, "schadennummer")
	assert.Equal(t, "2024001234", detail.Run.FinalExtraction["schadennummer"])

	require.Contains(t, detail.Run.FinalScores, "unterlagen_vollstaendig")
	assert.Equal(t, 1.0, detail.Run.FinalScores["unterlagen_vollstaendig"])

	require.Contains(t, detail.Run.FinalDecisions, "deckung_erteilen")
	assert.Equal(t, false, detail.Run.FinalDecisions["deckung_erteilen"])

	assert.Equal(t, model.RunStatusConsolidated, detail.Run.Status)
}

func TestAggregate_Idempotent(t *testing.T) {
	detail := sampleDetail()

	Aggregate(detail)
	first := *detail
	firstSteps := make([]model.Step, len(detail.Steps))
	copy(firstSteps, detail.Steps)

	Aggregate(detail)

	assert.Equal(t, first.Run.FinalExtraction, detail.Run.FinalExtraction)
	assert.Equal(t, first.Run.FinalScores, detail.Run.FinalScores)
	assert.Equal(t, first.Run.FinalDecisions, detail.Run.FinalDecisions)
	assert.Equal(t, first.Run.OverallScore, detail.Run.OverallScore)
	assert.Equal(t, firstSteps, detail.Steps)
}

func TestAggregate_FallsBackToPromptSlug(t *testing.T) {
	detail := &model.RunDetail{
		Steps: []model.Step{
			{
				Index: 0,
				Type:  model.StepExtraction,
				Def:   &model.StepDef{Prompt: "Wie lautet die Schadennummer des Falls?"},
				Attempts: []model.Attempt{
					{Index: 0, Value: "2024001234"},
				},
			},
		},
	}

	Aggregate(detail)

	assert.Contains(t, detail.Run.FinalExtraction, "wie_lautet_die_schadennummer_des_falls")
}

func TestAggregate_UnkeyedStepIsolated(t *testing.T) {
	detail := &model.RunDetail{
		Steps: []model.Step{
			{Index: 0, Type: model.StepExtraction, Attempts: []model.Attempt{{Value: "x"}}},
			{
				Index:    1,
				Type:     model.StepScore,
				FinalKey: "plausibel",
				Attempts: []model.Attempt{{Value: true}},
			},
		},
	}

	Aggregate(detail)

	assert.Equal(t, model.StepStatusUnparseable, detail.Steps[0].Status)
	assert.Empty(t, detail.Run.FinalExtraction)
	assert.Equal(t, 1.0, detail.Run.FinalScores["plausibel"])
	assert.Equal(t, model.RunStatusConsolidated, detail.Run.Status)
}

func TestAggregate_KeepsUnparseableStatus(t *testing.T) {
	detail := &model.RunDetail{
		Run: model.RunCore{ID: "run-1"},
		Steps: []model.Step{
			{
				Index:    0,
				Type:     model.StepDecision,
				Status:   model.StepStatusUnparseable,
				FinalKey: "deckung_erteilen",
			},
			{
				Index:    1,
				Type:     model.StepScore,
				FinalKey: "plausibel",
				Attempts: []model.Attempt{{Value: true}},
			},
		},
	}

	Aggregate(detail)

	// A decode failure stays a decode failure; it must not degrade into
	// an "all attempts were junk" result or a false in the final maps.
	assert.Equal(t, model.StepStatusUnparseable, detail.Steps[0].Status)
	assert.NotContains(t, detail.Run.FinalDecisions, "deckung_erteilen")
	assert.Nil(t, detail.Steps[0].FinalValue)

	assert.Equal(t, 1.0, detail.Run.FinalScores["plausibel"])
}

func TestAggregate_MalformedLogEntryStaysVisible(t *testing.T) {
	steps := runlog.ParseSteps([]runlog.Entry{
		{
			PromptType:  "DecisionPrompt",
			DecisionKey: "deckung_erteilen",
			Result:      json.RawMessage(`not json at all`),
		},
		{
			PromptType:  "ScoringPrompt",
			DecisionKey: "plausibel",
			Result:      json.RawMessage(`{"scores":[{"result":true}]}`),
		},
	})
	detail := &model.RunDetail{Run: model.RunCore{ID: "run-1"}, Steps: steps}

	Aggregate(detail)

	assert.Equal(t, model.StepStatusUnparseable, detail.Steps[0].Status)
	assert.Empty(t, detail.Run.FinalDecisions)
	assert.Equal(t, 1.0, detail.Run.FinalScores["plausibel"])
	// The consolidated scoring step alone drives the overall score.
	assert.InDelta(t, 1.0, detail.Run.OverallScore, 0.0001)
}

func TestAggregate_UnknownStepType(t *testing.T) {
	detail := &model.RunDetail{
		Steps: []model.Step{
			{Index: 0, Type: model.StepType("mystery"), FinalKey: "x"},
		},
	}

	Aggregate(detail)

	assert.Equal(t, model.StepStatusUnparseable, detail.Steps[0].Status)
	assert.Equal(t, 0.0, detail.Run.OverallScore)
}

func TestOverallScore_Weighted(t *testing.T) {
	steps := []model.Step{
		{
			Type:       model.StepScore,
			Status:     model.StepStatusConsolidated,
			Def:        &model.StepDef{Weight: 3},
			FinalValue: true,
		},
		{
			Type:       model.StepDecision,
			Status:     model.StepStatusConsolidated,
			Def:        &model.StepDef{Weight: 1},
			FinalValue: false,
		},
	}

	assert.InDelta(t, 0.75, OverallScore(steps), 0.0001)
}

func TestOverallScore_DefaultWeightIsOne(t *testing.T) {
	steps := []model.Step{
		{Type: model.StepScore, Status: model.StepStatusConsolidated, FinalValue: true},
		{Type: model.StepScore, Status: model.StepStatusConsolidated, FinalValue: false},
	}

	assert.InDelta(t, 0.5, OverallScore(steps), 0.0001)
}

func TestOverallScore_SkipsUnconsolidated(t *testing.T) {
	steps := []model.Step{
		{Type: model.StepScore, Status: model.StepStatusConsolidated, FinalValue: true},
		{Type: model.StepScore, Status: model.StepStatusEmpty, FinalValue: false},
		{Type: model.StepScore, Status: model.StepStatusUnparseable},
	}

	// Unknown steps neither help nor hurt the score.
	assert.InDelta(t, 1.0, OverallScore(steps), 0.0001)
}

func TestOverallScore_IgnoresNonBooleanSteps(t *testing.T) {
	steps := []model.Step{
		{Type: model.StepExtraction, Status: model.StepStatusConsolidated, FinalValue: "wert"},
		{Type: model.StepMeta, Status: model.StepStatusConsolidated},
	}

	assert.Equal(t, 0.0, OverallScore(steps))
}

func TestOverallScore_Empty(t *testing.T) {
	assert.Equal(t, 0.0, OverallScore(nil))
}

package runlog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/model"
)

func TestParseSteps_Extraction(t *testing.T) {
	entries := []Entry{{
		PromptType: "ExtractionPrompt",
		PromptID:   "p-1",
		Prompt:     "Wie lautet die Schadennummer?",
		Result: json.RawMessage(`{
			"results": [
				{"value": "SCH-2024/001 234", "confidence": 0.9,
				 "source": {"page": 3, "quote": "Schadennummer: SCH-2024/001 234",
				            "bbox": [10.5, 20, 110, 34]}},
				{"value": "2024001234"}
			]
		}`),
	}}

	steps := ParseSteps(entries)
	require.Len(t, steps, 1)

	step := steps[0]
	assert.Equal(t, model.StepExtraction, step.Type)
	assert.Equal(t, model.StepStatusPending, step.Status)
	assert.Equal(t, "wie_lautet_die_schadennummer", step.FinalKey)
	require.Len(t, step.Attempts, 2)

	first := step.Attempts[0]
	assert.Equal(t, "SCH-2024/001 234", first.Value)
	require.NotNil(t, first.Confidence)
	assert.InDelta(t, 0.9, *first.Confidence, 0.0001)
	require.NotNil(t, first.Provenance)
	assert.Equal(t, 3, first.Provenance.Page)
	assert.Equal(t, [4]float64{10.5, 20, 110, 34}, first.Provenance.BBox)
	assert.True(t, first.Provenance.HasBBox())

	assert.Nil(t, step.Attempts[1].Provenance)
}

func TestParseSteps_ScoringWithConsolidated(t *testing.T) {
	entries := []Entry{{
		PromptType:  "ScoringPrompt",
		DecisionKey: "unterlagen_vollstaendig",
		Result: json.RawMessage(`{
			"scores": [
				{"result": true, "explanation": "alle Anlagen vorhanden"},
				{"result": false}
			],
			"consolidated": {"result": true}
		}`),
	}}

	steps := ParseSteps(entries)
	require.Len(t, steps, 1)

	step := steps[0]
	assert.Equal(t, model.StepScore, step.Type)
	assert.Equal(t, "unterlagen_vollstaendig", step.FinalKey)
	require.Len(t, step.Attempts, 3)
	assert.Equal(t, true, step.Attempts[0].Value)
	assert.Equal(t, false, step.Attempts[1].Value)
	assert.Equal(t, true, step.Attempts[2].Value)
	assert.Equal(t, model.SourceConsolidated, step.Attempts[2].Source)
	assert.Equal(t, model.SourceLLM, step.Attempts[0].Source)
}

func TestParseSteps_DecisionVoteShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []any
	}{
		{
			name: "boolean field",
			raw:  `{"votes": [{"boolean": true}, {"boolean": false}]}`,
			want: []any{true, false},
		},
		{
			name: "value field",
			raw:  `{"votes": [{"value": "ja"}, {"value": "nein"}]}`,
			want: []any{"ja", "nein"},
		},
		{
			name: "route field",
			raw:  `{"votes": [{"route": "kasko"}]}`,
			want: []any{"kasko"},
		},
		{
			name: "results array fallback",
			raw:  `{"results": [{"boolean": true}]}`,
			want: []any{true},
		},
		{
			name: "boolean wins over value",
			raw:  `{"votes": [{"boolean": false, "value": "ja", "route": "kasko"}]}`,
			want: []any{false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			steps := ParseSteps([]Entry{{
				PromptType:  "DecisionPrompt",
				DecisionKey: "deckung",
				Result:      json.RawMessage(tc.raw),
			}})
			require.Len(t, steps, 1)
			require.Len(t, steps[0].Attempts, len(tc.want))
			for i, want := range tc.want {
				assert.Equal(t, want, steps[0].Attempts[i].Value)
			}
		})
	}
}

func TestParseSteps_DecisionKeyWinsOverSlug(t *testing.T) {
	steps := ParseSteps([]Entry{{
		PromptType:  "DecisionPrompt",
		Prompt:      "Soll die Deckung erteilt werden?",
		DecisionKey: "deckung_erteilen",
		Result:      json.RawMessage(`{"votes": []}`),
	}})

	assert.Equal(t, "deckung_erteilen", steps[0].FinalKey)
}

func TestParseSteps_MetaTypes(t *testing.T) {
	steps := ParseSteps([]Entry{
		{PromptType: "FinalPrompt"},
		{PromptType: "MetaPrompt"},
	})

	require.Len(t, steps, 2)
	for _, s := range steps {
		assert.Equal(t, model.StepMeta, s.Type)
		assert.Equal(t, model.StepStatusPending, s.Status)
	}
}

func TestParseSteps_UnknownTypeUnparseable(t *testing.T) {
	steps := ParseSteps([]Entry{{PromptType: "FutureliciousPrompt"}})

	require.Len(t, steps, 1)
	assert.Equal(t, model.StepMeta, steps[0].Type)
	assert.Equal(t, model.StepStatusUnparseable, steps[0].Status)
}

func TestParseSteps_MalformedPayloadUnparseable(t *testing.T) {
	steps := ParseSteps([]Entry{
		{PromptType: "ExtractionPrompt", Result: json.RawMessage(`not json`)},
		{PromptType: "ScoringPrompt"},
		{PromptType: "DecisionPrompt", Result: json.RawMessage(`[]`)},
	})

	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, model.StepStatusUnparseable, s.Status, "entry %d", i)
	}
}

func TestParseSteps_PreservesOrderAndDef(t *testing.T) {
	steps := ParseSteps([]Entry{
		{PromptType: "ExtractionPrompt", PromptID: "a", Weight: 2,
			Prompt: "Feld A", Result: json.RawMessage(`{"results": []}`)},
		{PromptType: "ScoringPrompt", PromptID: "b",
			Prompt: "Frage B", Result: json.RawMessage(`{"scores": []}`)},
	})

	require.Len(t, steps, 2)
	assert.Equal(t, 0, steps[0].Index)
	assert.Equal(t, 1, steps[1].Index)
	require.NotNil(t, steps[0].Def)
	assert.Equal(t, "a", steps[0].Def.PromptID)
	assert.Equal(t, 2.0, steps[0].Def.Weight)
	assert.Equal(t, "Frage B", steps[1].Def.Prompt)
}

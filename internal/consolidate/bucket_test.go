package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/model"
)

func extractionStep(key string, values ...any) *model.Step {
	step := &model.Step{Type: model.StepExtraction, FinalKey: key}
	for i, v := range values {
		step.Attempts = append(step.Attempts, model.Attempt{Index: i, Value: v})
	}
	return step
}

func TestConsolidateExtraction_MajorityWins(t *testing.T) {
	step := extractionStep("schadennummer", "1234567890", "1234567890", "9999999999")

	ConsolidateExtraction(step)

	assert.Equal(t, "1234567890", step.FinalValue)
	assert.Equal(t, model.StepStatusConsolidated, step.Status)
	assert.Greater(t, step.FinalConfidence, 0.5)
}

func TestConsolidateExtraction_ConfidenceValue(t *testing.T) {
	step := extractionStep("schadennummer", "1234567890", "1234567890", "9999999999")

	ConsolidateExtraction(step)

	// base=(2+0.5)/4, margin=1/3, alpha=0.73, quality=1.4
	assert.InDelta(t, 0.578, step.FinalConfidence, 0.001)
}

func TestConsolidateExtraction_IsFinalTagging(t *testing.T) {
	step := extractionStep("schadennummer", "1234567890", "9999999999", "1234-567-890")

	ConsolidateExtraction(step)

	assert.True(t, step.Attempts[0].IsFinal)
	assert.False(t, step.Attempts[1].IsFinal)
	// Same digits, different formatting: same bucket as the winner.
	assert.True(t, step.Attempts[2].IsFinal)
}

func TestConsolidateExtraction_TieBreakByQuality(t *testing.T) {
	prov := &model.Provenance{Page: 2, BBox: [4]float64{1, 2, 3, 4}}
	step := &model.Step{
		Type:     model.StepExtraction,
		FinalKey: "kundenname",
		Attempts: []model.Attempt{
			{Index: 0, Value: "plain value"},
			{Index: 1, Value: "Max Mustermann", Provenance: prov},
		},
	}

	ConsolidateExtraction(step)

	assert.Equal(t, "Max Mustermann", step.FinalValue)
}

func TestConsolidateExtraction_TieBreakFirstSeenIsStable(t *testing.T) {
	for range 10 {
		step := extractionStep("bemerkung", "erster wert", "zweiter wert")
		ConsolidateExtraction(step)
		assert.Equal(t, "erster wert", step.FinalValue)
	}
}

func TestConsolidateExtraction_DigitBucketShowsDigitKey(t *testing.T) {
	step := extractionStep("schadennummer", "1234-567-890", "1234/567/890")

	ConsolidateExtraction(step)

	// ID-like buckets display the bare digit string, not a formatted variant.
	assert.Equal(t, "1234567890", step.FinalValue)
}

func TestConsolidateExtraction_PrettyMostFrequentForm(t *testing.T) {
	step := extractionStep("kundenname",
		"MAX MUSTERMANN", "Max Mustermann", "Max Mustermann")

	ConsolidateExtraction(step)

	assert.Equal(t, "Max Mustermann", step.FinalValue)
}

func TestConsolidateExtraction_AllJunkYieldsPlaceholder(t *testing.T) {
	step := extractionStep("schadennummer",
		"nicht angegeben", "nicht angegeben", "n/a")

	ConsolidateExtraction(step)

	assert.Equal(t, EmptyValue, step.FinalValue)
	assert.Equal(t, 0.0, step.FinalConfidence)
	assert.Equal(t, model.StepStatusEmpty, step.Status)
	for _, a := range step.Attempts {
		assert.False(t, a.IsFinal)
	}
}

func TestConsolidateExtraction_NoAttempts(t *testing.T) {
	step := extractionStep("schadennummer")

	ConsolidateExtraction(step)

	assert.Equal(t, EmptyValue, step.FinalValue)
	assert.Equal(t, 0.0, step.FinalConfidence)
}

func TestConsolidateExtraction_JunkNeverCounted(t *testing.T) {
	step := extractionStep("schadennummer",
		"1234567890", "nicht angegeben", "9999999999", "9999999999")

	ConsolidateExtraction(step)

	// Junk is excluded: 2 vs 1, the nine-run wins.
	require.Equal(t, "9999999999", step.FinalValue)
	assert.False(t, step.Attempts[1].IsFinal)
}

func TestConsolidateExtraction_Idempotent(t *testing.T) {
	step := extractionStep("schadennummer", "1234567890", "9999999999", "1234567890")

	ConsolidateExtraction(step)
	v1, c1 := step.FinalValue, step.FinalConfidence
	ConsolidateExtraction(step)

	assert.Equal(t, v1, step.FinalValue)
	assert.Equal(t, c1, step.FinalConfidence)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Wie lautet die Schadennummer?", "wie_lautet_die_schadennummer"},
		{"Sind die Unterlagen vollständig?", "sind_die_unterlagen_vollstaendig"},
		{"Höhe des Schadens in €", "hoehe_des_schadens_in"},
		{"Straße und Hausnummer", "strasse_und_hausnummer"},
		{"  Deckung   erteilen  ", "deckung_erteilen"},
		{"UPPER Case", "upper_case"},
		{"", ""},
		{"???", ""},
		{"eins zwei drei vier fuenf sechs sieben acht", "eins_zwei_drei_vier_fuenf_sechs"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.in), "input %q", tc.in)
	}
}

func TestStepWeight(t *testing.T) {
	assert.Equal(t, 1.0, (&Step{}).Weight())
	assert.Equal(t, 1.0, (&Step{Def: &StepDef{}}).Weight())
	assert.Equal(t, 2.5, (&Step{Def: &StepDef{Weight: 2.5}}).Weight())
}

func TestProvenanceHasBBox(t *testing.T) {
	var p *Provenance
	assert.False(t, p.HasBBox())
	assert.False(t, (&Provenance{Page: 2}).HasBBox())
	assert.True(t, (&Provenance{BBox: [4]float64{1, 2, 3, 4}}).HasBBox())
}

func TestPipelineStepDefAtRoot(t *testing.T) {
	assert.True(t, PipelineStepDef{}.AtRoot())
	assert.True(t, PipelineStepDef{Route: RootRoute}.AtRoot())
	assert.False(t, PipelineStepDef{Route: "kasko"}.AtRoot())
}

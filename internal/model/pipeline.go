package model

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// PromptType discriminates pipeline step definitions as stored in the
// pipeline editor.
type PromptType string

const (
	PromptExtraction PromptType = "ExtractionPrompt"
	PromptScoring    PromptType = "ScoringPrompt"
	PromptDecision   PromptType = "DecisionPrompt"
)

// RootRoute is the sentinel meaning "this step belongs to no branch".
// An empty route means the same thing.
const RootRoute = "ROOT"

// PipelineStepDef is one entry in an ordered pipeline definition.
// A DecisionPrompt introduces the branch names YesKey/NoKey; later steps
// reference one of them via Route.
type PipelineStepDef struct {
	ID      string     `json:"id" yaml:"id"`
	Type    PromptType `json:"type" yaml:"type"`
	Label   string     `json:"label,omitempty" yaml:"label,omitempty"`
	Route   string     `json:"route,omitempty" yaml:"route,omitempty"`
	YesKey  string     `json:"yesKey,omitempty" yaml:"yesKey,omitempty"`
	NoKey   string     `json:"noKey,omitempty" yaml:"noKey,omitempty"`
	MergeTo string     `json:"mergeTo,omitempty" yaml:"mergeTo,omitempty"`
	Weight  float64    `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// AtRoot reports whether the step declares no branch membership.
func (d PipelineStepDef) AtRoot() bool {
	return d.Route == "" || d.Route == RootRoute
}

// LayoutRow is one visual row produced by the topology layout engine.
type LayoutRow struct {
	Step     PipelineStepDef `json:"step"`
	Depth    int             `json:"depth"`
	Label    string          `json:"label"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Pipeline is a named, ordered step list as stored on disk or in the store.
type Pipeline struct {
	ID    string            `json:"id" yaml:"id"`
	Name  string            `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []PipelineStepDef `json:"steps" yaml:"steps"`
}

// LoadPipeline reads a pipeline definition from a YAML file.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read pipeline %s", path)
	}
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "model: parse pipeline %s", path)
	}
	return &p, nil
}

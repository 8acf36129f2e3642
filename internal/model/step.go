package model

// StepType discriminates the consolidation behavior of a pipeline step.
type StepType string

const (
	// StepExtraction steps pull a concrete field value out of the document.
	StepExtraction StepType = "extraction"
	// StepScore steps answer a yes/no quality question about the document.
	StepScore StepType = "score"
	// StepDecision steps answer a yes/no question that routes later steps.
	StepDecision StepType = "decision"
	// StepMeta steps carry bookkeeping only and are never consolidated.
	StepMeta StepType = "meta"
)

// StepStatus represents the consolidation state of a step.
type StepStatus string

const (
	StepStatusPending      StepStatus = "pending"
	StepStatusConsolidated StepStatus = "consolidated"
	// StepStatusEmpty means every attempt was junk or the step had none;
	// the final value is a placeholder and confidence is 0.
	StepStatusEmpty StepStatus = "empty"
	// StepStatusUnparseable marks a raw log entry that could not be decoded.
	StepStatusUnparseable StepStatus = "unparseable"
)

// AttemptSource tags where a candidate came from.
type AttemptSource string

const (
	SourceLLM          AttemptSource = "llm"
	SourceRule         AttemptSource = "rule"
	SourceConsolidated AttemptSource = "consolidated"
)

// Provenance locates a candidate value inside the source document.
type Provenance struct {
	Page  int        `json:"page,omitempty"`
	Quote string     `json:"quote,omitempty"`
	BBox  [4]float64 `json:"bbox,omitempty"`
}

// HasBBox reports whether the bounding box is non-zero.
func (p *Provenance) HasBBox() bool {
	if p == nil {
		return false
	}
	return p.BBox != [4]float64{}
}

// Attempt is one raw candidate value or vote produced for a step.
// Attempts are immutable inputs to consolidation except for IsFinal,
// which the consolidation engine derives.
type Attempt struct {
	Index      int           `json:"index"`
	Value      any           `json:"value"`
	Confidence *float64      `json:"confidence,omitempty"`
	Source     AttemptSource `json:"source,omitempty"`
	Provenance *Provenance   `json:"provenance,omitempty"`
	// IsFinal is true when this attempt agrees with the consolidated
	// winner. Derived, never read as input.
	IsFinal bool `json:"is_final"`
}

// StepDef carries the prompt definition a step was executed from.
type StepDef struct {
	PromptID   string `json:"prompt_id,omitempty"`
	PromptType string `json:"prompt_type,omitempty"`
	JSONKey    string `json:"json_key,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	// Weight scales this step's contribution to the run's overall score.
	// Zero means the default weight of 1.
	Weight float64 `json:"weight,omitempty"`
}

// Step is one pipeline execution unit inside a run. The Final* fields
// are outputs of consolidation, never raw input.
type Step struct {
	Index           int        `json:"index"`
	Type            StepType   `json:"type"`
	Status          StepStatus `json:"status"`
	FinalKey        string     `json:"final_key"`
	FinalValue      any        `json:"final_value,omitempty"`
	FinalConfidence float64    `json:"final_confidence"`
	Attempts        []Attempt  `json:"attempts,omitempty"`
	Def             *StepDef   `json:"def,omitempty"`
}

// Weight returns the step's overall-score weight, defaulting to 1.
func (s *Step) Weight() float64 {
	if s.Def != nil && s.Def.Weight > 0 {
		return s.Def.Weight
	}
	return 1
}

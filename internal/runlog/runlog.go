// Package runlog decodes the raw run log exchanged with the execution
// backend. Entry payloads vary by prompt type and backend version, so
// each variant has its own total parse function: an entry either yields
// typed attempts or an explicitly unparseable step, never a silent cast.
package runlog

import (
	"encoding/json"

	"github.com/claimsight/claimsight/internal/model"
)

// Entry is one raw log record for a single pipeline step.
type Entry struct {
	PromptType  string          `json:"prompt_type"`
	PromptID    string          `json:"prompt_id,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	DecisionKey string          `json:"decision_key,omitempty"`
	Weight      float64         `json:"weight,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type sourceJSON struct {
	Page  int       `json:"page"`
	Quote string    `json:"quote"`
	BBox  []float64 `json:"bbox"`
}

func (s *sourceJSON) provenance() *model.Provenance {
	if s == nil {
		return nil
	}
	p := &model.Provenance{Page: s.Page, Quote: s.Quote}
	for i := 0; i < len(s.BBox) && i < 4; i++ {
		p.BBox[i] = s.BBox[i]
	}
	return p
}

type extractionResult struct {
	Results []struct {
		Value      any         `json:"value"`
		Confidence *float64    `json:"confidence,omitempty"`
		Source     *sourceJSON `json:"source,omitempty"`
	} `json:"results"`
}

type scoringResult struct {
	Scores []struct {
		Result      *bool       `json:"result"`
		Explanation string      `json:"explanation,omitempty"`
		Source      *sourceJSON `json:"source,omitempty"`
	} `json:"scores"`
	Consolidated *struct {
		Result *bool `json:"result"`
	} `json:"consolidated,omitempty"`
}

type voteJSON struct {
	Boolean *bool  `json:"boolean,omitempty"`
	Value   any    `json:"value,omitempty"`
	Route   string `json:"route,omitempty"`
}

type decisionResult struct {
	Votes   []voteJSON `json:"votes"`
	Results []voteJSON `json:"results"`
}

// ParseSteps decodes a raw log into steps ready for consolidation.
// Malformed entries are kept as unparseable steps so the caller sees
// exactly which positions were dropped; they never abort the run.
func ParseSteps(entries []Entry) []model.Step {
	steps := make([]model.Step, 0, len(entries))
	for i, e := range entries {
		steps = append(steps, parseEntry(i, e))
	}
	return steps
}

func parseEntry(index int, e Entry) model.Step {
	step := model.Step{
		Index:    index,
		Status:   model.StepStatusPending,
		FinalKey: finalKey(e),
		Def: &model.StepDef{
			PromptID:   e.PromptID,
			PromptType: e.PromptType,
			JSONKey:    e.DecisionKey,
			Prompt:     e.Prompt,
			Weight:     e.Weight,
		},
	}

	switch e.PromptType {
	case string(model.PromptExtraction):
		step.Type = model.StepExtraction
		attempts, ok := parseExtraction(e.Result)
		if !ok {
			step.Status = model.StepStatusUnparseable
			return step
		}
		step.Attempts = attempts

	case string(model.PromptScoring):
		step.Type = model.StepScore
		attempts, ok := parseScoring(e.Result)
		if !ok {
			step.Status = model.StepStatusUnparseable
			return step
		}
		step.Attempts = attempts

	case string(model.PromptDecision):
		step.Type = model.StepDecision
		attempts, ok := parseDecision(e.Result)
		if !ok {
			step.Status = model.StepStatusUnparseable
			return step
		}
		step.Attempts = attempts

	case "FinalPrompt", "MetaPrompt":
		step.Type = model.StepMeta

	default:
		step.Type = model.StepMeta
		step.Status = model.StepStatusUnparseable
	}

	return step
}

func finalKey(e Entry) string {
	if e.DecisionKey != "" {
		return e.DecisionKey
	}
	return model.Slugify(e.Prompt)
}

func parseExtraction(raw json.RawMessage) ([]model.Attempt, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var res extractionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false
	}
	attempts := make([]model.Attempt, 0, len(res.Results))
	for i, r := range res.Results {
		attempts = append(attempts, model.Attempt{
			Index:      i,
			Value:      r.Value,
			Confidence: r.Confidence,
			Source:     model.SourceLLM,
			Provenance: r.Source.provenance(),
		})
	}
	return attempts, true
}

func parseScoring(raw json.RawMessage) ([]model.Attempt, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var res scoringResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false
	}
	attempts := make([]model.Attempt, 0, len(res.Scores)+1)
	for i, s := range res.Scores {
		var value any
		if s.Result != nil {
			value = *s.Result
		}
		attempts = append(attempts, model.Attempt{
			Index:      i,
			Value:      value,
			Source:     model.SourceLLM,
			Provenance: s.Source.provenance(),
		})
	}
	// Backend versions that pre-consolidate scores report the result as
	// one extra vote tagged with its origin.
	if res.Consolidated != nil && res.Consolidated.Result != nil {
		attempts = append(attempts, model.Attempt{
			Index:  len(attempts),
			Value:  *res.Consolidated.Result,
			Source: model.SourceConsolidated,
		})
	}
	return attempts, true
}

func parseDecision(raw json.RawMessage) ([]model.Attempt, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var res decisionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false
	}
	votes := res.Votes
	if len(votes) == 0 {
		votes = res.Results
	}
	attempts := make([]model.Attempt, 0, len(votes))
	for i, v := range votes {
		var value any
		switch {
		case v.Boolean != nil:
			value = *v.Boolean
		case v.Value != nil:
			value = v.Value
		case v.Route != "":
			value = v.Route
		}
		attempts = append(attempts, model.Attempt{
			Index:  i,
			Value:  value,
			Source: model.SourceLLM,
		})
	}
	return attempts, true
}

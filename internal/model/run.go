package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusRunning      RunStatus = "running"
	RunStatusConsolidated RunStatus = "consolidated"
	RunStatusFailed       RunStatus = "failed"
)

// RunCore is the run-level header assembled once per run by the
// aggregator and immutable afterwards.
type RunCore struct {
	ID         string    `json:"id"`
	PipelineID string    `json:"pipeline_id"`
	DocumentID string    `json:"document_id"`
	Status     RunStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	OverallScore float64 `json:"overall_score"`

	FinalExtraction map[string]any     `json:"final_extraction"`
	FinalScores     map[string]float64 `json:"final_scores"`
	FinalDecisions  map[string]bool    `json:"final_decisions"`
}

// RunDetail is the full consolidated view of one run.
type RunDetail struct {
	Run   RunCore `json:"run"`
	Steps []Step  `json:"steps"`
}

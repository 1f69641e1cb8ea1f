package models

import "time"

// PipelineStage identifies where an item currently sits in the pipeline
// state machine.
type PipelineStage string

const (
	StagePending           PipelineStage = "pending"
	StageHeuristicPassed   PipelineStage = "heuristic_passed"
	StageHeuristicRejected PipelineStage = "heuristic_rejected"
	StageClassified        PipelineStage = "classified"
	StageExtracted         PipelineStage = "extracted"
	StageNormalized        PipelineStage = "normalized"
	StageDedupChecked      PipelineStage = "dedup_checked"
	StageImported          PipelineStage = "imported"
	StageNeedsReview       PipelineStage = "needs_review"
	StageDiscarded         PipelineStage = "discarded"
	StageError             PipelineStage = "error"
)

// IsTerminal reports whether no further automatic transition occurs from
// this stage. needs_review is terminal for the pipeline; a human action
// resumes it out of band.
func (s PipelineStage) IsTerminal() bool {
	switch s {
	case StageHeuristicRejected, StageImported, StageNeedsReview, StageDiscarded, StageError:
		return true
	}
	return false
}

// Valid reports whether the stage is one of the known pipeline stages.
func (s PipelineStage) Valid() bool {
	switch s {
	case StagePending, StageHeuristicPassed, StageHeuristicRejected,
		StageClassified, StageExtracted, StageNormalized, StageDedupChecked,
		StageImported, StageNeedsReview, StageDiscarded, StageError:
		return true
	}
	return false
}

// ErrorKind classifies the last failure recorded on an item.
type ErrorKind string

const (
	ErrorKindValidation        ErrorKind = "validation"
	ErrorKindTransientExternal ErrorKind = "transient_external"
	ErrorKindNotFound          ErrorKind = "not_found"
	ErrorKindInternal          ErrorKind = "internal"
)

// ItemError is the last error recorded against a pipeline item.
type ItemError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ItemPayload is the per-stage output bag carried by a pipeline item. Each
// field is written exactly once by the stage that produces it.
type ItemPayload struct {
	Heuristic  *HeuristicResult    `json:"heuristic,omitempty"`
	Extraction *ExtractionResult   `json:"extraction,omitempty"`
	Postings   []AtomicPosting     `json:"postings,omitempty"`
	Normalized []NormalizedPosting `json:"normalized,omitempty"`
	Dedup      []DedupOutcome      `json:"dedup,omitempty"`
	Decisions  []ImportDecision    `json:"decisions,omitempty"`
}

// PipelineItem is the mutable unit of work owned by the orchestrator.
// Stage processors only return values; they never hold a reference to it.
type PipelineItem struct {
	ID            string                      `json:"id"`
	Message       RawMessage                  `json:"message"`
	Stage         PipelineStage               `json:"stage"`
	Attempts      int                         `json:"attempts"`
	LastError     *ItemError                  `json:"last_error,omitempty"`
	DiscardReason string                      `json:"discard_reason,omitempty"`
	Payload       ItemPayload                 `json:"payload"`
	StageTimes    map[PipelineStage]time.Time `json:"stage_times,omitempty"`
	NextAttemptAt time.Time                   `json:"next_attempt_at"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// Transition moves the item to the given stage, stamping the transition
// time and clearing any previous error.
func (i *PipelineItem) Transition(stage PipelineStage, now time.Time) {
	i.Stage = stage
	i.LastError = nil
	if i.StageTimes == nil {
		i.StageTimes = make(map[PipelineStage]time.Time)
	}
	i.StageTimes[stage] = now
	i.UpdatedAt = now
}

// RecordFailure stamps the last error and bumps the attempt counter.
func (i *PipelineItem) RecordFailure(kind ErrorKind, message string, now time.Time) {
	i.Attempts++
	i.LastError = &ItemError{Kind: kind, Message: message}
	i.UpdatedAt = now
}

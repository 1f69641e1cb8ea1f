package models

// ImportAction is the decision engine's verdict for one posting.
type ImportAction string

const (
	ActionImport  ImportAction = "import"
	ActionReview  ImportAction = "review"
	ActionDiscard ImportAction = "discard"
)

// ImportDecision is the decision engine output for one posting. Errors are
// blocking structural failures; warnings are informational only.
type ImportDecision struct {
	PostingID  string       `json:"posting_id"`
	Action     ImportAction `json:"action"`
	Confidence float64      `json:"confidence"`
	Errors     []string     `json:"errors,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
}

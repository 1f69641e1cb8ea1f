package background

import (
	"context"
	"time"
)

// RunStatus represents the outcome of one maintenance task run
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailure RunStatus = "FAILURE"
)

// Task is a named maintenance job executed on a fixed interval. Run
// returns the number of rows it touched.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// RunResult records the last execution of a maintenance task
type RunResult struct {
	Task       string        `json:"task"`
	Status     RunStatus     `json:"status"`
	Affected   int           `json:"affected"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Executions int           `json:"executions"`
}

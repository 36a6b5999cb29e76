package domain

import (
	"fmt"
	"time"
)

// RunStatus is the terminal status of a plan execution.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// StepRecord captures what happened to one step.
type StepRecord struct {
	StepID     string         `json:"step_id"`
	Capability string         `json:"capability"`
	Args       map[string]any `json:"args,omitempty"`
	Output     any            `json:"output,omitempty"`
	Iterations int            `json:"iterations,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"`
}

// RunResult is the outcome of one plan execution.
// Completed counts steps that finished (including skipped ones) before the run ended.
type RunResult struct {
	RunID     string       `json:"run_id"`
	PlanID    string       `json:"plan_id,omitempty"`
	Goal      string       `json:"goal,omitempty"`
	Output    string       `json:"output"`
	Steps     []StepRecord `json:"steps"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Status    RunStatus    `json:"status"`
}

// Summary renders the progress line reported on failure or cancellation.
func (r *RunResult) Summary() string {
	if r == nil {
		return "0 steps completed"
	}
	if r.Completed == 1 {
		return fmt.Sprintf("1 step completed of %d", r.Total)
	}
	return fmt.Sprintf("%d steps completed of %d", r.Completed, r.Total)
}

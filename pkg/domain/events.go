package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPlanGenerated EventType = "plan_generated"
	EventStepStart     EventType = "step_start"
	EventStepEnd       EventType = "step_end"
	EventRunEnd        EventType = "run_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
}

// PlanEvent is emitted once a plan has been generated and validated, or rejected.
type PlanEvent struct {
	EventBase
	PlanID   string        `json:"plan_id,omitempty"`
	Goal     string        `json:"goal"`
	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// StepEvent is emitted around each capability invocation.
type StepEvent struct {
	EventBase
	PlanID     string         `json:"plan_id,omitempty"`
	StepID     string         `json:"step_id"`
	Capability string         `json:"capability"`
	Iteration  int            `json:"iteration,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Output     any            `json:"output,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Err        error          `json:"-"`
}

// RunEvent is emitted when a plan execution ends.
type RunEvent struct {
	EventBase
	PlanID    string        `json:"plan_id,omitempty"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Status    RunStatus     `json:"status"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
type LifecycleHooks struct {
	OnPlanGenerated func(context.Context, *PlanEvent)
	OnStepStart     func(context.Context, *StepEvent)
	OnStepEnd       func(context.Context, *StepEvent)
	OnRunEnd        func(context.Context, *RunEvent)
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrRegistrySealed is returned when registering into a sealed registry.
var ErrRegistrySealed = errors.New("registry is sealed")

// ErrEmptyGoal is returned when a goal has no content after sanitization.
var ErrEmptyGoal = errors.New("goal is empty")

// DuplicateCapabilityError is returned when a capability name is registered twice.
type DuplicateCapabilityError struct {
	Name string
}

func (e *DuplicateCapabilityError) Error() string {
	return fmt.Sprintf("capability '%s' is already registered", e.Name)
}

// UnknownCapabilityError is returned when a capability name is not registered.
type UnknownCapabilityError struct {
	Name string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("capability '%s' is not registered", e.Name)
}

// PlanValidationError rejects a whole plan. Problems lists every violation found.
type PlanValidationError struct {
	Problems []string
}

func (e *PlanValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "invalid plan"
	case 1:
		return "invalid plan: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid plan: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// PlanGenerationError reports a reasoning service failure, timeout or an unparseable response.
type PlanGenerationError struct {
	Reason string
	Cause  error
}

func (e *PlanGenerationError) Error() string {
	if e.Cause == nil {
		return "plan generation failed: " + e.Reason
	}
	return fmt.Sprintf("plan generation failed: %s: %v", e.Reason, e.Cause)
}

func (e *PlanGenerationError) Unwrap() error { return e.Cause }

// UnresolvedReferenceError is returned when a binding names a value absent from the execution context.
type UnresolvedReferenceError struct {
	StepID string
	Ref    string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("step '%s': unresolved reference '$%s'", e.StepID, e.Ref)
}

// CapabilityExecutionError wraps a handler failure with the step that caused it.
type CapabilityExecutionError struct {
	StepID     string
	Capability string
	Iteration  int
	Cause      error
}

func (e *CapabilityExecutionError) Error() string {
	if e.Iteration > 0 {
		return fmt.Sprintf("step '%s' (%s) failed on iteration %d: %v", e.StepID, e.Capability, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("step '%s' (%s) failed: %v", e.StepID, e.Capability, e.Cause)
}

func (e *CapabilityExecutionError) Unwrap() error { return e.Cause }

// PlanLoopLimitExceeded is returned when loop iterations exceed the configured budget.
type PlanLoopLimitExceeded struct {
	StepID string
	Limit  int
}

func (e *PlanLoopLimitExceeded) Error() string {
	return fmt.Sprintf("step '%s': loop iteration limit of %d exceeded", e.StepID, e.Limit)
}

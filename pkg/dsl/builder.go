package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/conductor/pkg/domain"
)

// Builder manages the plan construction. Steps keep the order they were added in.
type Builder struct {
	goal   string
	inputs []string
	steps  []*StepBuilder
	index  map[string]*StepBuilder
}

// New creates a new plan builder for goal.
func New(goal string) *Builder {
	return &Builder{
		goal:  goal,
		index: make(map[string]*StepBuilder),
	}
}

// Inputs declares caller-supplied values the steps may reference.
func (b *Builder) Inputs(names ...string) *Builder {
	b.inputs = append(b.inputs, names...)
	return b
}

// Add appends a step to the plan.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(id string) *StepBuilder {
	if sb, ok := b.index[id]; ok {
		return sb
	}
	sb := &StepBuilder{step: domain.Step{ID: id}}
	b.steps = append(b.steps, sb)
	b.index[id] = sb
	return sb
}

// Build assembles the plan. It only checks the shape of each step;
// capability and reference checks are left to the orchestrator's Validate.
func (b *Builder) Build() (*domain.Plan, error) {
	plan := &domain.Plan{
		Goal:   b.goal,
		Inputs: append([]string(nil), b.inputs...),
		Steps:  make([]domain.Step, 0, len(b.steps)),
	}

	var errs []error
	for _, sb := range b.steps {
		errs = append(errs, sb.errs...)
		if sb.step.Capability == "" {
			errs = append(errs, fmt.Errorf("step '%s' has no capability", sb.step.ID))
		}
		plan.Steps = append(plan.Steps, sb.step)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to build plan: %w", err)
	}
	return plan, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Plan {
	plan, err := b.Build()
	if err != nil {
		panic(err)
	}
	return plan
}

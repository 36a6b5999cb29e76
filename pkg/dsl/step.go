package dsl

import (
	"fmt"

	"github.com/aretw0/conductor/pkg/domain"
)

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step domain.Step
	errs []error
}

// Call sets the capability the step invokes.
func (s *StepBuilder) Call(capability string) *StepBuilder {
	s.step.Capability = capability
	return s
}

// Arg binds a literal value to a parameter. Strings are taken verbatim,
// so "$x" here is the text "$x", not a reference.
func (s *StepBuilder) Arg(name string, value any) *StepBuilder {
	return s.bind(name, domain.Literal(value))
}

// Ref binds a parameter to an earlier step's output or a plan input ("id" or "id.field").
func (s *StepBuilder) Ref(name, expr string) *StepBuilder {
	return s.bind(name, domain.Ref(expr))
}

func (s *StepBuilder) bind(name string, b domain.Binding) *StepBuilder {
	if s.step.Args == nil {
		s.step.Args = make(map[string]domain.Binding)
	}
	s.step.Args[name] = b
	return s
}

// When runs the step only if the referenced value compares to value with op.
// value is ignored by the unary operators truthy and falsy.
func (s *StepBuilder) When(ref string, op domain.CompareOp, value any) *StepBuilder {
	s.step.When = s.condition(ref, op, value)
	return s
}

// Over runs the step once per item of the referenced list, exposing it as as.
func (s *StepBuilder) Over(ref, as string) *StepBuilder {
	over := domain.Ref(ref)
	s.step.Repeat = &domain.Repeat{Over: &over, As: as}
	return s
}

// Times runs the step n times, exposing the zero-based index as as.
func (s *StepBuilder) Times(n int, as string) *StepBuilder {
	if n <= 0 {
		s.errs = append(s.errs, fmt.Errorf("step '%s': times must be positive", s.step.ID))
	}
	s.step.Repeat = &domain.Repeat{Times: n, As: as}
	return s
}

// While repeats the step while the condition holds, at most max times.
// The step's own previous result is visible under its ID.
func (s *StepBuilder) While(ref string, op domain.CompareOp, value any, max int) *StepBuilder {
	if max <= 0 {
		s.errs = append(s.errs, fmt.Errorf("step '%s': while loops need a positive max", s.step.ID))
	}
	s.step.Repeat = &domain.Repeat{While: s.condition(ref, op, value), Max: max}
	return s
}

func (s *StepBuilder) condition(ref string, op domain.CompareOp, value any) *domain.Condition {
	if !op.Valid() {
		s.errs = append(s.errs, fmt.Errorf("step '%s': unknown operator '%s'", s.step.ID, op))
	}
	c := &domain.Condition{Ref: domain.Ref(ref), Op: op}
	if !op.Unary() {
		c.Value = domain.Literal(value)
	}
	return c
}

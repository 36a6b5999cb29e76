package planner

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/aretw0/conductor/pkg/schema"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Validate checks a plan against the capabilities in snap and returns a
// *domain.PlanValidationError listing every problem, or nil.
// A plan without steps is valid.
func Validate(plan *domain.Plan, snap *registry.Snapshot) error {
	v := &validator{
		snap:    snap,
		inScope: make(map[string]bool),
	}
	v.run(plan)
	if len(v.problems) == 0 {
		return nil
	}
	return &domain.PlanValidationError{Problems: v.problems}
}

type validator struct {
	snap     *registry.Snapshot
	inScope  map[string]bool
	problems []string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) run(plan *domain.Plan) {
	for _, in := range plan.Inputs {
		if !identifier.MatchString(in) {
			v.addf("input '%s': invalid name", in)
			continue
		}
		if v.inScope[in] {
			v.addf("input '%s': declared twice", in)
		}
		v.inScope[in] = true
	}

	for i, step := range plan.Steps {
		v.step(i, step)
		if step.ID != "" {
			v.inScope[step.ID] = true
		}
	}
}

func (v *validator) step(index int, step domain.Step) {
	label := step.ID
	switch {
	case step.ID == "":
		label = fmt.Sprintf("#%d", index+1)
		v.addf("step %s: missing id", label)
	case !identifier.MatchString(step.ID):
		v.addf("step '%s': invalid id", step.ID)
	case v.inScope[step.ID]:
		v.addf("step '%s': id is already defined", step.ID)
	}

	loopVar := ""
	if step.Repeat != nil {
		loopVar = step.Repeat.As
		v.repeat(label, step)
	}

	// Arguments and the guard may use the loop variable; the loop source may not.
	for _, name := range slices.Sorted(maps.Keys(step.Args)) {
		v.ref(label, "argument '"+name+"'", step.Args[name], loopVar, "")
	}
	if step.When != nil {
		v.condition(label, "when", step.When, loopVar, "")
	}

	if step.Capability == "" {
		v.addf("step %s: missing capability", quote(label))
		return
	}
	info, ok := v.snap.Info(step.Capability)
	if !ok {
		v.addf("step %s: unknown capability '%s'", quote(label), step.Capability)
		return
	}
	v.args(label, info, v.snap.Fields(step.Capability), step.Args)
}

func (v *validator) repeat(label string, step domain.Step) {
	r := step.Repeat
	drivers := 0
	if r.Over != nil {
		drivers++
		v.ref(label, "repeat.over", *r.Over, "", "")
	}
	if r.Times != 0 {
		drivers++
		if r.Times < 0 {
			v.addf("step %s: repeat.times must be positive", quote(label))
		}
	}
	if r.While != nil {
		drivers++
		if r.Max <= 0 {
			v.addf("step %s: repeat.while requires a positive max", quote(label))
		}
		v.condition(label, "repeat.while", r.While, r.As, step.ID)
	}
	if drivers != 1 {
		v.addf("step %s: repeat needs exactly one of over, times or while", quote(label))
	}
	if r.Max < 0 {
		v.addf("step %s: repeat.max must not be negative", quote(label))
	}
	if r.As != "" {
		if !identifier.MatchString(r.As) {
			v.addf("step %s: invalid loop variable '%s'", quote(label), r.As)
		} else if v.inScope[r.As] || r.As == step.ID {
			v.addf("step %s: loop variable '%s' shadows an existing name", quote(label), r.As)
		}
	}
}

func (v *validator) condition(label, where string, c *domain.Condition, loopVar, self string) {
	if !c.Op.Valid() {
		v.addf("step %s: %s has unknown operator '%s'", quote(label), where, c.Op)
	}
	v.ref(label, where+".ref", c.Ref, loopVar, self)
	if !c.Op.Unary() {
		v.ref(label, where+".value", c.Value, loopVar, self)
	}
}

// ref reports a problem unless b is a literal or names something already in scope.
func (v *validator) ref(label, where string, b domain.Binding, loopVar, self string) {
	if !b.IsRef() {
		return
	}
	if v.inScope[b.Ref] || (loopVar != "" && b.Ref == loopVar) || (self != "" && b.Ref == self) {
		return
	}
	v.addf("step %s: %s references '$%s' which is not defined by an earlier step or input", quote(label), where, b.Expr())
}

func (v *validator) args(label string, info domain.CapabilityInfo, fields []schema.Field, args map[string]domain.Binding) {
	for i, p := range info.Parameters {
		b, ok := args[p.Name]
		if !ok {
			if p.Required && p.Default == nil {
				v.addf("step %s: missing required argument '%s' for %s", quote(label), p.Name, info.Name)
			}
			continue
		}
		if b.IsRef() || b.Value == nil || i >= len(fields) {
			continue
		}
		if err := fields[i].Type.Validate(b.Value); err != nil {
			v.addf("step %s: argument '%s': %v", quote(label), p.Name, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(args)) {
		if _, ok := info.Param(name); !ok {
			v.addf("step %s: %s has no parameter '%s'", quote(label), info.Name, name)
		}
	}
}

func quote(label string) string {
	if len(label) > 0 && label[0] == '#' {
		return label
	}
	return "'" + label + "'"
}

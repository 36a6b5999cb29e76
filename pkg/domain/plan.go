package domain

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Plan is an ordered list of steps generated for one goal.
type Plan struct {
	ID     string   `json:"id,omitempty" yaml:"id,omitempty"`
	Goal   string   `json:"goal,omitempty" yaml:"goal,omitempty"`
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Steps  []Step   `json:"steps" yaml:"steps"`

	// Raw holds the reasoning service response the plan was parsed from.
	Raw string `json:"-" yaml:"-"`
}

// Step is one capability invocation. ID doubles as the step's output identifier.
type Step struct {
	ID         string             `json:"id" yaml:"id"`
	Capability string             `json:"capability" yaml:"capability"`
	Args       map[string]Binding `json:"args,omitempty" yaml:"args,omitempty"`
	When       *Condition         `json:"when,omitempty" yaml:"when,omitempty"`
	Repeat     *Repeat            `json:"repeat,omitempty" yaml:"repeat,omitempty"`
}

// Refs returns every reference the step depends on, in a stable order.
// References to the step's own output or its loop variable are excluded.
func (s Step) Refs() []Binding {
	var refs []Binding
	add := func(b Binding) {
		if b.IsRef() {
			refs = append(refs, b)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(s.Args)) {
		add(s.Args[name])
	}
	if s.When != nil {
		add(s.When.Ref)
		add(s.When.Value)
	}
	if s.Repeat != nil {
		if s.Repeat.Over != nil {
			add(*s.Repeat.Over)
		}
		if s.Repeat.While != nil {
			add(s.Repeat.While.Ref)
			add(s.Repeat.While.Value)
		}
	}

	loopVar := ""
	if s.Repeat != nil {
		loopVar = s.Repeat.As
	}
	external := refs[:0]
	for _, r := range refs {
		if r.Ref != s.ID && (loopVar == "" || r.Ref != loopVar) {
			external = append(external, r)
		}
	}
	return external
}

// Binding is an argument value: either a literal or a reference to a
// previously produced output, a plan input or a loop variable.
//
// In JSON a reference is written as "$name" or "$name.field.0", or as the
// object {"$ref": "name.field"}. A literal string starting with "$" is
// escaped as "$$".
type Binding struct {
	Ref   string
	Path  []string
	Value any
}

var refPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z0-9_-]+)*$`)

// Literal returns a binding holding v.
func Literal(v any) Binding {
	return Binding{Value: v}
}

// Ref returns a reference binding for expr ("name" or "name.path.to.field").
func Ref(expr string) Binding {
	parts := strings.Split(expr, ".")
	b := Binding{Ref: parts[0]}
	if len(parts) > 1 {
		b.Path = parts[1:]
	}
	return b
}

// IsRef reports whether the binding points at another value.
func (b Binding) IsRef() bool {
	return b.Ref != ""
}

// Expr returns the reference expression without the "$" prefix.
func (b Binding) Expr() string {
	if len(b.Path) == 0 {
		return b.Ref
	}
	return b.Ref + "." + strings.Join(b.Path, ".")
}

// String renders the binding the way it is written in plans.
func (b Binding) String() string {
	if b.IsRef() {
		return "$" + b.Expr()
	}
	if s, ok := b.Value.(string); ok {
		return strconv.Quote(s)
	}
	data, err := json.Marshal(b.Value)
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}

// ParseBinding interprets a decoded wire value as a Binding.
func ParseBinding(v any) Binding {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$$") {
			return Literal(val[1:])
		}
		if strings.HasPrefix(val, "$") && refPattern.MatchString(val[1:]) {
			return Ref(val[1:])
		}
		return Literal(val)
	case map[string]any:
		if len(val) == 1 {
			if expr, ok := val["$ref"].(string); ok && refPattern.MatchString(expr) {
				return Ref(expr)
			}
		}
	}
	return Literal(v)
}

// MarshalJSON writes references with the "$" shorthand.
func (b Binding) MarshalJSON() ([]byte, error) {
	if b.IsRef() {
		return json.Marshal("$" + b.Expr())
	}
	if s, ok := b.Value.(string); ok && strings.HasPrefix(s, "$") {
		return json.Marshal("$" + s)
	}
	return json.Marshal(b.Value)
}

// UnmarshalJSON accepts literals, "$name" shorthands and {"$ref": ...} objects.
func (b *Binding) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = ParseBinding(v)
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (b Binding) MarshalYAML() (any, error) {
	if b.IsRef() {
		return "$" + b.Expr(), nil
	}
	if s, ok := b.Value.(string); ok && strings.HasPrefix(s, "$") {
		return "$" + s, nil
	}
	return b.Value, nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (b *Binding) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	*b = ParseBinding(v)
	return nil
}

// CompareOp is the operator of a Condition.
type CompareOp string

const (
	OpEq       CompareOp = "eq"
	OpNe       CompareOp = "ne"
	OpGt       CompareOp = "gt"
	OpGte      CompareOp = "gte"
	OpLt       CompareOp = "lt"
	OpLte      CompareOp = "lte"
	OpTruthy   CompareOp = "truthy"
	OpFalsy    CompareOp = "falsy"
	OpContains CompareOp = "contains"
)

// Valid reports whether op is a known operator.
func (op CompareOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpTruthy, OpFalsy, OpContains:
		return true
	}
	return false
}

// Unary reports whether the operator ignores Value.
func (op CompareOp) Unary() bool {
	return op == OpTruthy || op == OpFalsy
}

// Condition guards a step: it runs only when Ref <Op> Value holds.
type Condition struct {
	Ref   Binding   `json:"ref" yaml:"ref"`
	Op    CompareOp `json:"op" yaml:"op"`
	Value Binding   `json:"value,omitempty" yaml:"value,omitempty"`
}

// Repeat makes a step a bounded loop. Exactly one of Over, Times or While
// drives the loop; While loops must declare Max.
type Repeat struct {
	Over  *Binding   `json:"over,omitempty" yaml:"over,omitempty"`
	Times int        `json:"times,omitempty" yaml:"times,omitempty"`
	While *Condition `json:"while,omitempty" yaml:"while,omitempty"`
	Max   int        `json:"max,omitempty" yaml:"max,omitempty"`

	// As names the loop variable visible to the step's bindings.
	// For Over it holds the current item, otherwise the iteration index.
	As string `json:"as,omitempty" yaml:"as,omitempty"`
}

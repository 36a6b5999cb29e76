package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

type wirePlan struct {
	Inputs []string   `mapstructure:"inputs"`
	Steps  []wireStep `mapstructure:"steps"`
}

type wireStep struct {
	ID         string         `mapstructure:"id"`
	Capability string         `mapstructure:"capability"`
	Args       map[string]any `mapstructure:"args"`
	When       map[string]any `mapstructure:"when"`
	Repeat     *wireRepeat    `mapstructure:"repeat"`
}

type wireRepeat struct {
	Over  any            `mapstructure:"over"`
	Times int            `mapstructure:"times"`
	While map[string]any `mapstructure:"while"`
	Max   int            `mapstructure:"max"`
	As    string         `mapstructure:"as"`
}

// ErrNoJSON is returned when a response contains no JSON document.
var ErrNoJSON = errors.New("response contains no JSON document")

// ParsePlan decodes a reasoning service response into a Plan.
// It tolerates markdown code fences and prose around the JSON document,
// and accepts either {"steps": [...]} or a bare array of steps.
func ParsePlan(raw string) (*domain.Plan, error) {
	doc, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal([]byte(doc), &decoded); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if steps, ok := decoded.([]any); ok {
		decoded = map[string]any{"steps": steps}
	}

	var wire wirePlan
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &wire,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(decoded); err != nil {
		return nil, fmt.Errorf("unexpected plan structure: %w", err)
	}

	plan := &domain.Plan{
		Inputs: wire.Inputs,
		Steps:  make([]domain.Step, 0, len(wire.Steps)),
		Raw:    raw,
	}
	for _, ws := range wire.Steps {
		step := domain.Step{
			ID:         strings.TrimSpace(ws.ID),
			Capability: strings.TrimSpace(ws.Capability),
		}
		if len(ws.Args) > 0 {
			step.Args = make(map[string]domain.Binding, len(ws.Args))
			for name, v := range ws.Args {
				step.Args[name] = domain.ParseBinding(v)
			}
		}
		if ws.When != nil {
			step.When = parseCondition(ws.When)
		}
		if ws.Repeat != nil {
			step.Repeat = &domain.Repeat{
				Times: ws.Repeat.Times,
				Max:   ws.Repeat.Max,
				As:    strings.TrimPrefix(strings.TrimSpace(ws.Repeat.As), "$"),
			}
			if ws.Repeat.Over != nil {
				over := refOrLiteral(ws.Repeat.Over)
				step.Repeat.Over = &over
			}
			if ws.Repeat.While != nil {
				step.Repeat.While = parseCondition(ws.Repeat.While)
			}
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

func parseCondition(m map[string]any) *domain.Condition {
	c := &domain.Condition{
		Ref: refOrLiteral(m["ref"]),
		Op:  domain.CompareOp(strings.ToLower(fmt.Sprint(m["op"]))),
	}
	if v, ok := m["value"]; ok {
		c.Value = domain.ParseBinding(v)
	}
	return c
}

// refOrLiteral treats a bare identifier as a reference, since the field can only hold one.
func refOrLiteral(v any) domain.Binding {
	b := domain.ParseBinding(v)
	if s, ok := v.(string); ok && !b.IsRef() && !strings.HasPrefix(s, "$") {
		if candidate := domain.ParseBinding("$" + s); candidate.IsRef() {
			return candidate
		}
	}
	return b
}

func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if start := strings.Index(s, "```"); start >= 0 {
		body := s[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		s = strings.TrimSpace(body)
	}

	if json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

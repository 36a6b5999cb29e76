package schema

import (
	"fmt"
	"maps"
	"slices"
)

// FieldSpec is the textual declaration of a field.
type FieldSpec struct {
	Name     string
	Type     string
	Required bool
}

// Field is a parsed, validatable field.
type Field struct {
	Name     string
	Type     Type
	Required bool
}

// ParseFields converts declarations into Fields, rejecting duplicate names and unknown types.
func ParseFields(specs []FieldSpec) ([]Field, error) {
	fields := make([]Field, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("field name is empty")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("field %s: declared twice", s.Name)
		}
		seen[s.Name] = true

		t, err := ParseType(s.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.Name, err)
		}
		fields = append(fields, Field{Name: s.Name, Type: t, Required: s.Required})
	}
	return fields, nil
}

type checkConfig struct {
	strict bool
}

// CheckOption configures Check.
type CheckOption func(*checkConfig)

// Strict rejects keys in data that no field declares.
func Strict() CheckOption {
	return func(c *checkConfig) { c.strict = true }
}

// Check validates data against fields in declaration order.
// Missing optional fields are fine; nil values count as missing.
// It returns an *AggregateError with one *ValidationError per problem.
func Check(fields []Field, data map[string]any, opts ...CheckOption) error {
	var cfg checkConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var errs []error
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true

		value, exists := data[f.Name]
		if !exists || value == nil {
			if f.Required {
				errs = append(errs, &ValidationError{Key: f.Name, Reason: "required"})
			}
			continue
		}
		if err := f.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: f.Name, Reason: err.Error(), Value: value})
		}
	}

	if cfg.strict {
		for _, key := range slices.Sorted(maps.Keys(data)) {
			if !declared[key] {
				errs = append(errs, &ValidationError{Key: key, Reason: "not declared"})
			}
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

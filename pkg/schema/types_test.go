package schema

import (
	"encoding/json"
	"testing"
)

func TestTypes_Validate(t *testing.T) {
	tests := []struct {
		typ     Type
		value   any
		wantErr bool
	}{
		{String(), "hello", false},
		{String(), 42, true},
		{Int(), 42, false},
		{Int(), int64(42), false},
		{Int(), float64(42), false},
		{Int(), 42.5, true},
		{Int(), json.Number("7"), false},
		{Int(), json.Number("7.5"), true},
		{Int(), "42", true},
		{Float(), 3.14, false},
		{Float(), 3, false},
		{Number(), json.Number("2.5"), false},
		{Number(), "2.5", true},
		{Bool(), true, false},
		{Bool(), "true", true},
		{Object(), map[string]any{"a": 1}, false},
		{Object(), map[int]any{1: 1}, true},
		{Object(), []any{}, true},
		{Any(), nil, false},
		{Slice(String()), []string{"a"}, false},
		{Slice(String()), []any{"a", 1}, true},
		{Slice(Int()), "nope", true},
	}

	for _, tt := range tests {
		err := tt.typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s.Validate(%v) error = %v, wantErr %v", tt.typ.Name(), tt.value, err, tt.wantErr)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantErr  bool
	}{
		{"string", "string", false},
		{"text", "string", false},
		{"integer", "int", false},
		{"number", "number", false},
		{"float", "float", false},
		{"boolean", "bool", false},
		{"object", "object", false},
		{"", "any", false},
		{"[string]", "[string]", false},
		{"[[int]]", "[[int]]", false},
		{"decimal", "", true},
		{"[decimal]", "", true},
	}

	for _, tt := range tests {
		typ, err := ParseType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && typ.Name() != tt.wantName {
			t.Errorf("ParseType(%q).Name() = %q, want %q", tt.input, typ.Name(), tt.wantName)
		}
	}
}

func TestCustomType(t *testing.T) {
	positive := Custom("positive", func(v any) error {
		if n, ok := v.(int); ok && n > 0 {
			return nil
		}
		return errNotPositive
	})

	if positive.Name() != "positive" {
		t.Errorf("Name() = %q, want %q", positive.Name(), "positive")
	}
	if err := positive.Validate(3); err != nil {
		t.Errorf("Validate(3) = %v, want nil", err)
	}
	if err := positive.Validate(-1); err != errNotPositive {
		t.Errorf("Validate(-1) = %v, want %v", err, errNotPositive)
	}
}

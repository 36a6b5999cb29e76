package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinding(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		wantRef string
		path    []string
		literal any
	}{
		{name: "literal number", in: 3.0, literal: 3.0},
		{name: "literal text", in: "hello", literal: "hello"},
		{name: "shorthand ref", in: "$sum", wantRef: "sum"},
		{name: "shorthand ref with path", in: "$user.address.0", wantRef: "user", path: []string{"address", "0"}},
		{name: "object ref", in: map[string]any{"$ref": "sum.total"}, wantRef: "sum", path: []string{"total"}},
		{name: "escaped dollar", in: "$$HOME", literal: "$HOME"},
		{name: "money is literal", in: "$5.00", literal: "$5.00"},
		{name: "map with extra keys is literal", in: map[string]any{"$ref": "a", "b": 1}, literal: map[string]any{"$ref": "a", "b": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := domain.ParseBinding(tt.in)
			if tt.wantRef != "" {
				require.True(t, b.IsRef())
				assert.Equal(t, tt.wantRef, b.Ref)
				assert.Equal(t, tt.path, b.Path)
				return
			}
			assert.False(t, b.IsRef())
			assert.Equal(t, tt.literal, b.Value)
		})
	}
}

func TestBinding_JSONShorthand(t *testing.T) {
	step := domain.Step{
		ID:         "greeting",
		Capability: "text.concat",
		Args: map[string]domain.Binding{
			"a": domain.Ref("name.first"),
			"b": domain.Literal("$tip"),
		},
	}

	data, err := json.Marshal(step)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"greeting","capability":"text.concat","args":{"a":"$name.first","b":"$$tip"}}`, string(data))

	var decoded domain.Step
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, step.Args["a"], decoded.Args["a"])
	assert.Equal(t, "$tip", decoded.Args["b"].Value)
}

func TestStep_Refs(t *testing.T) {
	over := domain.Ref("items")
	step := domain.Step{
		ID:         "each",
		Capability: "text.upper",
		Args: map[string]domain.Binding{
			"text":   domain.Ref("item"),
			"suffix": domain.Ref("suffix"),
			"mode":   domain.Literal("fast"),
		},
		When:   &domain.Condition{Ref: domain.Ref("enabled"), Op: domain.OpTruthy},
		Repeat: &domain.Repeat{Over: &over, As: "item"},
	}

	var names []string
	for _, r := range step.Refs() {
		names = append(names, r.Ref)
	}
	assert.Equal(t, []string{"suffix", "enabled", "items"}, names)
}

func TestInvocations(t *testing.T) {
	ctx := domain.WithInvocation(t.Context(), "solver")
	inner := domain.WithInvocation(ctx, "math.add")

	assert.Equal(t, []string{"solver"}, domain.Invocations(ctx))
	assert.Equal(t, []string{"solver", "math.add"}, domain.Invocations(inner))
	assert.Empty(t, domain.Invocations(t.Context()))
}

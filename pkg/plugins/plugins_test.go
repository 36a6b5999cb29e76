package plugins_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/conductor/pkg/adapters/scripted"
	"github.com/aretw0/conductor/pkg/plugins"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 2, 28, 22, 30, 0, 0, time.UTC) }
	reg := registry.NewRegistry()
	reg.MustRegister(registry.Plugin("math", plugins.Math()...)...)
	reg.MustRegister(registry.Plugin("text", plugins.Text()...)...)
	reg.MustRegister(registry.Plugin("time", plugins.Time(clock)...)...)
	return reg
}

func TestMath(t *testing.T) {
	reg := newRegistry(t)
	tests := []struct {
		name string
		args map[string]any
		want any
	}{
		{"math.add", map[string]any{"a": 2, "b": 3.5}, 5.5},
		{"math.subtract", map[string]any{"a": 2, "b": 3}, -1.0},
		{"math.multiply", map[string]any{"a": 4, "b": 2.5}, 10.0},
		{"math.divide", map[string]any{"a": 9, "b": 2}, 4.5},
		{"math.power", map[string]any{"a": 2, "b": 10}, 1024.0},
		{"math.min", map[string]any{"a": 2, "b": -3}, -3.0},
		{"math.max", map[string]any{"a": 2, "b": -3}, 2.0},
		{"math.sqrt", map[string]any{"x": 16}, 4.0},
		{"math.abs", map[string]any{"x": -7.25}, 7.25},
		{"math.round", map[string]any{"x": 3.14159, "digits": 2}, 3.14},
		{"math.round", map[string]any{"x": 2.5}, 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Execute(context.Background(), tt.name, tt.args)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMath_Errors(t *testing.T) {
	reg := newRegistry(t)

	_, err := reg.Execute(context.Background(), "math.divide", map[string]any{"a": 1, "b": 0})
	assert.ErrorIs(t, err, plugins.ErrDivisionByZero)

	_, err = reg.Execute(context.Background(), "math.sqrt", map[string]any{"x": -1})
	assert.ErrorIs(t, err, plugins.ErrNegativeRoot)

	_, err = reg.Execute(context.Background(), "math.add", map[string]any{"a": "two", "b": 1})
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	reg := newRegistry(t)
	tests := []struct {
		name string
		args map[string]any
		want any
	}{
		{"text.upper", map[string]any{"text": "abc"}, "ABC"},
		{"text.lower", map[string]any{"text": "ABC"}, "abc"},
		{"text.trim", map[string]any{"text": "  a b  "}, "a b"},
		{"text.length", map[string]any{"text": "héllo"}, 5},
		{"text.concat", map[string]any{"items": []any{"a", 1, "c"}, "separator": "-"}, "a-1-c"},
		{"text.concat", map[string]any{"items": []any{"x", "y"}}, "xy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Execute(context.Background(), tt.name, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTime(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	got, err := reg.Execute(ctx, "time.now", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-28T22:30:00Z", got)

	got, err = reg.Execute(ctx, "time.today", map[string]any{"timezone": "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got)

	got, err = reg.Execute(ctx, "time.add_days", map[string]any{"date": "2024-02-28", "days": 2})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", got)

	got, err = reg.Execute(ctx, "time.days_between", map[string]any{"from": "2024-01-01", "to": "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, 60, got)

	_, err = reg.Execute(ctx, "time.add_days", map[string]any{"date": "tomorrow", "days": 1})
	assert.ErrorContains(t, err, "YYYY-MM-DD")

	_, err = reg.Execute(ctx, "time.now", map[string]any{"timezone": "Mars/Olympus"})
	assert.ErrorContains(t, err, "unknown timezone")
}

func TestPrompt(t *testing.T) {
	reasoner := scripted.New("  Energy is conserved.  ")
	c, err := plugins.Prompt(reasoner, plugins.PromptConfig{
		Name:        "summarize",
		Description: "Summarizes text in one line",
		Template:    "{{$input}}\n\nOne line TLDR in {{ $style }} style.",
		Variables: []plugins.Variable{
			{Name: "style", Default: "plain"},
		},
		MaxTokens: 100,
	})
	require.NoError(t, err)

	require.Len(t, c.Info.Parameters, 2)
	assert.Equal(t, "style", c.Info.Parameters[0].Name)
	assert.False(t, c.Info.Parameters[0].Required)
	assert.Equal(t, "input", c.Info.Parameters[1].Name)
	assert.True(t, c.Info.Parameters[1].Required)

	reg := registry.NewRegistry()
	reg.MustRegister(c)
	got, err := reg.Execute(context.Background(), "summarize", map[string]any{"input": "1st law"})
	require.NoError(t, err)
	assert.Equal(t, "Energy is conserved.", got)

	reqs := reasoner.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "1st law\n\nOne line TLDR in plain style.", reqs[0].Prompt)
	assert.Equal(t, 100, reqs[0].MaxTokens)

	_, err = reg.Execute(context.Background(), "summarize", map[string]any{})
	assert.Error(t, err)
}

func TestPrompt_Invalid(t *testing.T) {
	reasoner := scripted.New()

	_, err := plugins.Prompt(reasoner, plugins.PromptConfig{Name: "empty"})
	assert.Error(t, err)

	_, err = plugins.Prompt(reasoner, plugins.PromptConfig{
		Name:      "unused",
		Template:  "Hello {{$name}}",
		Variables: []plugins.Variable{{Name: "other"}},
	})
	assert.ErrorContains(t, err, "not used")

	_, err = plugins.Prompt(nil, plugins.PromptConfig{Name: "x", Template: "y"})
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, plugins.Placeholders("{{$a}} {{ $b }} {{$a}} {{notvar}}"))
	assert.Equal(t, "x-", plugins.Render("{{$a}}-{{$b}}", map[string]any{"a": "x"}))
}

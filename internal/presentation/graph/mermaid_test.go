package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/conductor/internal/presentation/graph"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	over := domain.Ref("items")
	tests := []struct {
		name     string
		plan     *domain.Plan
		contains []string
	}{
		{
			name: "Step Shapes",
			plan: &domain.Plan{
				Inputs: []string{"items"},
				Steps: []domain.Step{
					{ID: "plain", Capability: "text.upper"},
					{ID: "each", Capability: "text.upper", Repeat: &domain.Repeat{Over: &over, As: "item"}},
					{ID: "maybe", Capability: "text.lower", When: &domain.Condition{Ref: domain.Ref("plain"), Op: domain.OpTruthy}},
				},
			},
			contains: []string{
				`items(("$items"))`,
				`plain["plain <br/> text.upper"]`,
				`each[["each <br/> text.upper <br/> for each $items"]]`,
				`maybe{{"maybe <br/> text.lower"}}`,
			},
		},
		{
			name: "Data Flow Edges",
			plan: &domain.Plan{
				Steps: []domain.Step{
					{ID: "sum", Capability: "math.add"},
					{ID: "product", Capability: "math.multiply", Args: map[string]domain.Binding{
						"a": domain.Ref("sum"),
						"b": domain.Ref("sum"),
					}},
					{ID: "check", Capability: "text.upper", When: &domain.Condition{Ref: domain.Ref("product"), Op: domain.OpGt, Value: domain.Literal(10)}},
				},
			},
			contains: []string{
				"sum --> product",
				`product -. "$product gt 10" .-> check`,
			},
		},
		{
			name: "ID Sanitization",
			plan: &domain.Plan{
				Steps: []domain.Step{{ID: "hyphen-ated", Capability: "x"}},
			},
			contains: []string{`hyphen_ated["hyphen-ated <br/> x"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.plan, nil)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
		})
	}
}

func TestGenerateMermaid_DuplicateRefsDrawOneEdge(t *testing.T) {
	plan := &domain.Plan{Steps: []domain.Step{
		{ID: "a", Capability: "x"},
		{ID: "b", Capability: "y", Args: map[string]domain.Binding{"p": domain.Ref("a"), "q": domain.Ref("a.field")}},
	}}

	got := graph.GenerateMermaid(plan, nil)
	assert.Equal(t, 1, strings.Count(got, "a --> b"))
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	plan := &domain.Plan{Steps: []domain.Step{
		{ID: "one", Capability: "x"},
		{ID: "two", Capability: "y"},
		{ID: "three", Capability: "z"},
	}}
	res := &domain.RunResult{Steps: []domain.StepRecord{
		{StepID: "one"},
		{StepID: "two", Skipped: true},
		{StepID: "three", Error: "boom"},
	}}

	got := graph.GenerateMermaid(plan, graph.OverlayFromResult(res))
	assert.Contains(t, got, "class one completed;")
	assert.Contains(t, got, "class two skipped;")
	assert.Contains(t, got, "class three failed;")

	assert.Nil(t, graph.OverlayFromResult(nil))
	assert.NotContains(t, graph.GenerateMermaid(plan, nil), "classDef")
}

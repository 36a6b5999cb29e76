package conductor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/pkg/adapters/memory"
	"github.com/aretw0/conductor/pkg/adapters/scripted"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func mathRegistry() *registry.Registry {
	num := func(name string) domain.Parameter {
		return domain.Parameter{Name: name, Type: "number", Required: true}
	}
	reg := registry.NewRegistry()
	reg.MustRegister(
		registry.New("add", "Adds two numbers", func(_ context.Context, args map[string]any) (any, error) {
			return toFloat(args["a"]) + toFloat(args["b"]), nil
		}, num("a"), num("b")),
		registry.New("multiply", "Multiplies two numbers", func(_ context.Context, args map[string]any) (any, error) {
			return toFloat(args["a"]) * toFloat(args["b"]), nil
		}, num("a"), num("b")),
		registry.New("divide", "Divides a by b", func(_ context.Context, args map[string]any) (any, error) {
			if toFloat(args["b"]) == 0 {
				return nil, errors.New("division by zero")
			}
			return toFloat(args["a"]) / toFloat(args["b"]), nil
		}, num("a"), num("b")),
	)
	return reg
}

const sumThenMultiply = `{"steps":[
	{"id":"sum","capability":"add","args":{"a":3,"b":4}},
	{"id":"product","capability":"multiply","args":{"a":"$sum","b":5}}
]}`

func newOrchestrator(t *testing.T, reasoner *scripted.Reasoner, opts ...conductor.Option) *conductor.Orchestrator {
	t.Helper()
	opts = append([]conductor.Option{
		conductor.WithRegistry(mathRegistry()),
		conductor.WithReasoner(reasoner),
	}, opts...)
	o, err := conductor.New(opts...)
	require.NoError(t, err)
	return o
}

func TestRunGoal_AppendsHistoryOnSuccess(t *testing.T) {
	reasoner := scripted.New(sumThenMultiply)
	o := newOrchestrator(t, reasoner)
	history := session.New("s1")

	res, err := o.RunGoal(context.Background(), "  What is 3 plus 4, times 5?  ", history)
	require.NoError(t, err)
	assert.Equal(t, "35", res.Output)
	assert.Equal(t, domain.RunCompleted, res.Status)

	turns := history.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, "What is 3 plus 4, times 5?", turns[0].Content)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "35", turns[1].Content)
	assert.Equal(t, 1, reasoner.Calls())
}

func TestRunGoal_HistoryFeedsNextPrompt(t *testing.T) {
	reasoner := scripted.New(sumThenMultiply).Repeat()
	o := newOrchestrator(t, reasoner)
	history := session.New("")

	_, err := o.RunGoal(context.Background(), "first question", history)
	require.NoError(t, err)
	_, err = o.RunGoal(context.Background(), "second question", history)
	require.NoError(t, err)

	reqs := reasoner.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].Prompt, "User: first question")
	assert.Contains(t, reqs[1].Prompt, "User: first question\nAssistant: 35")
	assert.Equal(t, 4, history.Len())
}

func TestRunGoal_FailureLeavesHistoryUntouched(t *testing.T) {
	reasoner := scripted.New(`[
		{"id":"ok","capability":"add","args":{"a":1,"b":1}},
		{"id":"bad","capability":"divide","args":{"a":"$ok","b":0}}
	]`)
	o := newOrchestrator(t, reasoner)
	history := session.New("")

	res, err := o.RunGoal(context.Background(), "divide by zero", history)
	var execErr *domain.CapabilityExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "bad", execErr.StepID)
	require.NotNil(t, res)
	assert.Equal(t, "1 step completed of 2", res.Summary())
	assert.Zero(t, history.Len())
}

func TestRunGoal_InvalidPlanIsNotRetriedByDefault(t *testing.T) {
	reasoner := scripted.New(`[{"id":"x","capability":"teleport","args":{}}]`, sumThenMultiply)
	o := newOrchestrator(t, reasoner)

	_, err := o.RunGoal(context.Background(), "go somewhere", nil)
	var invalid *domain.PlanValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Error(), "unknown capability 'teleport'")
	assert.Equal(t, 1, reasoner.Calls())
}

func TestRunGoal_WithRetries(t *testing.T) {
	reasoner := scripted.New("not a plan", `[{"id":"x","capability":"teleport"}]`, sumThenMultiply)
	o := newOrchestrator(t, reasoner)

	res, err := o.RunGoal(context.Background(), "compute", nil, conductor.WithRetries(2))
	require.NoError(t, err)
	assert.Equal(t, "35", res.Output)
	assert.Equal(t, 3, reasoner.Calls())
}

func TestRunGoal_RetriesExhausted(t *testing.T) {
	reasoner := scripted.New("nope").Repeat()
	o := newOrchestrator(t, reasoner)

	_, err := o.RunGoal(context.Background(), "compute", nil, conductor.WithRetries(1))
	var genErr *domain.PlanGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, reasoner.Calls())
}

func TestRunGoal_EmptyGoal(t *testing.T) {
	reasoner := scripted.New(sumThenMultiply)
	o := newOrchestrator(t, reasoner)

	_, err := o.RunGoal(context.Background(), " \x00 ", nil, conductor.WithRetries(3))
	assert.ErrorIs(t, err, domain.ErrEmptyGoal)
	assert.Zero(t, reasoner.Calls())
}

func TestGenerateAndExecuteWithInputs(t *testing.T) {
	reasoner := scripted.New(`[{"id":"twice","capability":"multiply","args":{"a":"$n","b":2}}]`)
	o := newOrchestrator(t, reasoner)
	inputs := conductor.WithInputs(map[string]any{"n": 21})

	plan, err := o.Generate(context.Background(), "double n", nil, inputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, plan.Inputs)
	assert.Contains(t, reasoner.Requests()[0].Prompt, "n")

	res, err := o.Execute(context.Background(), plan, inputs)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Output)

	_, err = o.Execute(context.Background(), plan)
	var unresolved *domain.UnresolvedReferenceError
	assert.ErrorAs(t, err, &unresolved)
}

func TestExecute_ValidatesPlan(t *testing.T) {
	o := newOrchestrator(t, scripted.New())
	tests := []struct {
		name string
		plan *domain.Plan
	}{
		{"unknown capability", &domain.Plan{Steps: []domain.Step{
			{ID: "a", Capability: "nope"},
		}}},
		{"forward reference", &domain.Plan{Steps: []domain.Step{
			{ID: "k", Capability: "add", Args: map[string]domain.Binding{"a": domain.Literal(1), "b": domain.Literal(2)}},
			{ID: "i", Capability: "add", Args: map[string]domain.Binding{"a": domain.Ref("k"), "b": domain.Ref("j")}},
			{ID: "j", Capability: "add", Args: map[string]domain.Binding{"a": domain.Literal(10), "b": domain.Literal(20)}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := o.Execute(context.Background(), tt.plan)
			var invalid *domain.PlanValidationError
			require.ErrorAs(t, err, &invalid)
			assert.NotEmpty(t, invalid.Problems)
			assert.Nil(t, res)
		})
	}
}

func TestNestedGoal_ExcludesItself(t *testing.T) {
	reasoner := scripted.New(
		`[{"id":"solve","capability":"solver","args":{"goal":"add three and four"}}]`,
		`[{"id":"s","capability":"add","args":{"a":3,"b":4}}]`,
	)
	o := newOrchestrator(t, reasoner)
	o.Registry().MustRegister(conductor.NestedGoal(o, domain.CapabilityInfo{
		Name:        "solver",
		Description: "Solves word problems",
	}))

	res, err := o.RunGoal(context.Background(), "solve it", nil)
	require.NoError(t, err)
	assert.Equal(t, "7", res.Output)

	reqs := reasoner.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Prompt, "solver: Solves word problems")
	assert.NotContains(t, reqs[1].Prompt, "solver: Solves word problems")
	assert.Contains(t, reqs[1].Prompt, "add three and four")
}

func TestNestedGoal_DepthLimit(t *testing.T) {
	reasoner := scripted.New(`[{"id":"again","capability":"solver","args":{"goal":"recurse"}}]`)
	o := newOrchestrator(t, reasoner, conductor.WithMaxDepth(1))
	o.Registry().MustRegister(conductor.NestedGoal(o, domain.CapabilityInfo{Name: "solver", Description: "Recurses"}))

	_, err := o.RunGoal(context.Background(), "start", nil)
	var genErr *domain.PlanGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Error(), "nesting depth")
	assert.Equal(t, 1, reasoner.Calls())
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	_, err := conductor.New(conductor.WithMaxIterations(0))
	assert.Error(t, err)
	_, err = conductor.New(conductor.WithParallelism(-1))
	assert.Error(t, err)

	o, err := conductor.New()
	require.NoError(t, err)
	_, err = o.RunGoal(context.Background(), "anything", nil)
	var genErr *domain.PlanGenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestSanitizeGoal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Hello World", "Hello World"},
		{"safe controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"escape sequences", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"null byte", "Null\x00Byte", "NullByte"},
		{"surrounding space", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conductor.SanitizeGoal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := conductor.SanitizeGoal(strings.Repeat("a", conductor.DefaultMaxGoalSize+1))
	assert.ErrorIs(t, err, conductor.ErrGoalTooLarge)
	_, err = conductor.SanitizeGoal("bad \xff utf8")
	assert.ErrorIs(t, err, conductor.ErrInvalidUTF8)
}

func TestSanitizeGoal_EnvOverride(t *testing.T) {
	t.Setenv(conductor.EnvMaxGoalSize, "4")
	_, err := conductor.SanitizeGoal("12345")
	assert.ErrorIs(t, err, conductor.ErrGoalTooLarge)
}

func TestChatRunner(t *testing.T) {
	reasoner := scripted.New(sumThenMultiply, `[{"id":"bad","capability":"divide","args":{"a":1,"b":0}}]`)
	o := newOrchestrator(t, reasoner)
	store := memory.NewStore()
	var out strings.Builder

	r := &conductor.ChatRunner{
		Input:    strings.NewReader("what is it?\n\nnow divide\nquit\nignored\n"),
		Output:   &out,
		Sessions: session.NewManager(store),
	}
	sess, err := r.Run(context.Background(), o, "chat-1")
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "--- Conductor chat (session chat-1) ---")
	assert.Contains(t, text, "35\n")
	assert.Contains(t, text, "Error: ")
	assert.Contains(t, text, "(0 steps completed of 1)")
	assert.Contains(t, text, "Bye!")
	assert.Equal(t, 2, reasoner.Calls())

	assert.Equal(t, 2, sess.Len())
	saved, err := store.Load(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "35", saved[1].Content)
}

func TestChatRunner_HeadlessEOF(t *testing.T) {
	reasoner := scripted.New(sumThenMultiply)
	o := newOrchestrator(t, reasoner)
	var out strings.Builder

	r := &conductor.ChatRunner{Input: strings.NewReader("last line without newline"), Output: &out, Headless: true}
	sess, err := r.Run(context.Background(), o, "")
	require.NoError(t, err)
	assert.Equal(t, "35\n", out.String())
	assert.NotEmpty(t, sess.ID())
}

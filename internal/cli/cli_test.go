package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/internal/testutils"
	"github.com/aretw0/conductor/pkg/config"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptedConfig(responses ...string) *config.Config {
	cfg := config.Default()
	cfg.Reasoner.Provider = "scripted"
	cfg.Reasoner.Responses = responses
	return cfg
}

func build(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func capabilityNames(app *App) []string {
	var names []string
	for c := range app.Orchestrator.Capabilities() {
		names = append(names, c.Name)
	}
	return names
}

const mathPlan = `{"steps":[
	{"id":"sum","capability":"math.add","args":{"a":3,"b":4}},
	{"id":"product","capability":"math.multiply","args":{"a":"$sum","b":5}}
]}`

func TestBuild_BuiltinsAndScriptedReasoner(t *testing.T) {
	app := build(t, scriptedConfig(mathPlan))

	names := capabilityNames(app)
	assert.Contains(t, names, "math.add")
	assert.Contains(t, names, "text.upper")
	assert.Contains(t, names, "time.now")

	res, err := app.Orchestrator.RunGoal(context.Background(), "3 plus 4 times 5", nil)
	require.NoError(t, err)
	assert.Equal(t, "35", res.Output)
}

func TestBuild_AllCapabilitySources(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"tools.yaml": `tools:
  - name: shout
    description: Echoes its input
    command: sh
    args: ["-c", "echo $CONDUCTOR_ARG_TEXT"]
    parameters:
      - name: text
        type: string
        required: true
`,
		"prompts/summarize.md": "---\ndescription: Summarize text\n---\nSummarize {{$text}}",
	})

	cfg := scriptedConfig(`{"steps":[]}`)
	cfg.Capabilities.Builtins = []string{"math"}
	cfg.Capabilities.Tools = filepath.Join(dir, "tools.yaml")
	cfg.Capabilities.Prompts = filepath.Join(dir, "prompts")
	cfg.Capabilities.Nested = []config.NestedConfig{{Name: "solver", Description: "Solves a sub-goal"}}

	app := build(t, cfg)
	names := capabilityNames(app)
	assert.Contains(t, names, "shout")
	assert.Contains(t, names, "summarize")
	assert.Contains(t, names, "solver")
	require.NotNil(t, app.Prompts)
}

func TestBuild_RegistryIsSealed(t *testing.T) {
	app := build(t, scriptedConfig(mathPlan))

	c, err := app.Orchestrator.Registry().Lookup("math.add")
	require.NoError(t, err)
	c.Info.Name = "math.add2"
	assert.ErrorIs(t, app.Orchestrator.Registry().Register(c), domain.ErrRegistrySealed)
}

func TestBuild_HistoryBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name  string
		setup func(*config.Config)
	}{
		{"memory", func(c *config.Config) {}},
		{"file", func(c *config.Config) {
			c.History.Backend = "file"
			c.History.Path = filepath.Join(dir, "sessions")
		}},
		{"sqlite", func(c *config.Config) {
			c.History.Backend = "sqlite"
			c.History.DSN = filepath.Join(dir, "db", "history.db")
		}},
		{"redis", func(c *config.Config) {
			c.History.Backend = "redis"
			c.History.Redis.Addr = mr.Addr()
		}},
		{"encrypted and redacted", func(c *config.Config) {
			c.History.Redact = []string{`\d{3}-\d{2}-\d{4}`}
			c.History.EncryptionKey = strings.Repeat("k", 32)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scriptedConfig(mathPlan)
			tt.setup(cfg)
			app := build(t, cfg)

			sess, err := app.Sessions.Update(context.Background(), "s1", func(ctx context.Context, s *session.Session) error {
				_, err := app.Orchestrator.RunGoal(ctx, "compute 123-45-6789", s)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, 2, sess.Len())

			loaded, err := app.Sessions.Load(context.Background(), "s1")
			require.NoError(t, err)
			require.Equal(t, 2, loaded.Len())
			assert.Equal(t, "35", loaded.Turns()[1].Content)
		})
	}
}

func TestBuild_MetricsAndTracing(t *testing.T) {
	cfg := scriptedConfig(mathPlan)
	cfg.Metrics.Enabled = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.File = filepath.Join(t.TempDir(), "traces.jsonl")

	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.Metrics)

	_, err = app.Orchestrator.RunGoal(context.Background(), "compute", nil)
	require.NoError(t, err)
	require.NoError(t, app.Close(context.Background()))

	data, err := os.ReadFile(cfg.Tracing.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "runtime.execute")
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*config.Config)
	}{
		{"scripted without responses", func(c *config.Config) { c.Reasoner.Responses = nil }},
		{"unknown builtin", func(c *config.Config) { c.Capabilities.Builtins = []string{"crypto"} }},
		{"bad redaction pattern", func(c *config.Config) { c.History.Redact = []string{"("} }},
		{"unreachable redis", func(c *config.Config) {
			c.History.Backend = "redis"
			c.History.Redis.Addr = "127.0.0.1:1"
		}},
		{"duplicate nested", func(c *config.Config) {
			c.Capabilities.Nested = []config.NestedConfig{{Name: "math.add"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scriptedConfig(mathPlan)
			tt.setup(cfg)
			_, err := Build(context.Background(), cfg, logging.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{context.Canceled, ExitInterrupted},
		{&UsageError{Err: errors.New("bad flag")}, ExitUsage},
		{conductor.ErrGoalTooLarge, ExitUsage},
		{&domain.PlanValidationError{Problems: []string{"x"}}, ExitPlanning},
		{&domain.PlanGenerationError{Reason: "timeout"}, ExitPlanning},
		{&domain.CapabilityExecutionError{StepID: "a", Cause: errors.New("boom")}, ExitExecution},
		{&domain.PlanLoopLimitExceeded{StepID: "a", Limit: 1}, ExitExecution},
		{errors.New("other"), ExitFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"plan.json": mathPlan,
		"plan.yaml": "steps:\n  - id: sum\n    capability: math.add\n    args:\n      a: 1\n      b: \"$x\"\n",
		"bad.json":  "{",
	})

	plan, err := LoadPlan(filepath.Join(dir, "plan.json"), nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "sum", plan.Steps[1].Args["a"].Ref)

	plan, err = LoadPlan(filepath.Join(dir, "plan.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "x", plan.Steps[0].Args["b"].Ref)

	plan, err = LoadPlan("-", strings.NewReader(mathPlan))
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)

	_, err = LoadPlan(filepath.Join(dir, "bad.json"), nil)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestPrintCapabilities(t *testing.T) {
	app := build(t, scriptedConfig(mathPlan))

	var buf bytes.Buffer
	require.NoError(t, printCapabilities(&buf, app, false))
	assert.Contains(t, buf.String(), "math.add\t")
	assert.Contains(t, buf.String(), "    a: number (required)")
}

func TestReport(t *testing.T) {
	res := &domain.RunResult{Output: "35", Status: domain.RunCompleted, Completed: 2, Total: 2}

	var buf bytes.Buffer
	require.NoError(t, report(&buf, res, nil, RunOptions{}))
	assert.Equal(t, "35\n", buf.String())

	buf.Reset()
	failed := &domain.RunResult{Status: domain.RunFailed, Completed: 1, Total: 2}
	err := report(&buf, failed, errors.New("boom"), RunOptions{})
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "Run failed (1 step completed of 2).")

	buf.Reset()
	require.NoError(t, report(&buf, res, nil, RunOptions{JSON: true}))
	assert.Contains(t, buf.String(), `"output": "35"`)
}

func TestCallCapability(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"conductor.yaml": "log:\n  level: error\nreasoner:\n  provider: scripted\n  responses: ['{\"steps\":[]}']\n",
	})
	base := CapabilityOptions{ConfigPath: filepath.Join(dir, "conductor.yaml")}

	var buf bytes.Buffer
	base.Output = &buf
	require.NoError(t, CallCapability(CallOptions{CapabilityOptions: base, Name: "math.add", Args: `{"a":2,"b":3}`}))
	assert.Equal(t, "5\n", buf.String())

	buf.Reset()
	jsonOpts := base
	jsonOpts.JSON = true
	require.NoError(t, CallCapability(CallOptions{CapabilityOptions: jsonOpts, Name: "text.upper", Args: `{"text":"hi"}`}))
	assert.Contains(t, buf.String(), `"capability": "text.upper"`)
	assert.Contains(t, buf.String(), `"output": "HI"`)

	err := CallCapability(CallOptions{CapabilityOptions: base, Name: "math.nope", Args: `{}`})
	var unknown *domain.UnknownCapabilityError
	require.ErrorAs(t, err, &unknown)
	assert.ErrorContains(t, err, "capability math.nope")

	err = CallCapability(CallOptions{CapabilityOptions: base, Name: "math.add", Args: `{"a":`})
	assert.Equal(t, ExitUsage, ExitCode(err))
}

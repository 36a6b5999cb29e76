package conductor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/internal/planner"
	"github.com/aretw0/conductor/internal/runtime"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/aretw0/conductor/pkg/session"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator is the high-level entry point for the Conductor library.
// It turns goals into plans with a reasoning service and runs them against the registered capabilities.
type Orchestrator struct {
	registry          *registry.Registry
	reasoner          ports.ReasoningService
	logger            *slog.Logger
	hooks             domain.LifecycleHooks
	tracer            trace.Tracer
	maxIterations     int
	stepTimeout       time.Duration
	generationTimeout time.Duration
	parallelism       int
	maxDepth          int
	render            session.RenderOptions

	generator *planner.Generator
	executor  *runtime.Executor
}

// Option defines a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithRegistry sets the capability registry. A fresh empty registry is used by default.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = reg
	}
}

// WithReasoner sets the reasoning service used to generate plans.
func WithReasoner(reasoner ports.ReasoningService) Option {
	return func(o *Orchestrator) {
		o.reasoner = reasoner
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithTracer sets the OpenTelemetry tracer for planning and execution spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithMaxIterations caps loop iterations per run (default 100).
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		o.maxIterations = n
	}
}

// WithStepTimeout bounds each capability invocation (default 30s).
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.stepTimeout = d
	}
}

// WithGenerationTimeout bounds each reasoning service call (default 60s).
func WithGenerationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.generationTimeout = d
	}
}

// WithParallelism allows independent steps to run concurrently.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		o.parallelism = n
	}
}

// WithMaxDepth limits nested planning through NestedGoal capabilities (default 4).
func WithMaxDepth(n int) Option {
	return func(o *Orchestrator) {
		o.maxDepth = n
	}
}

// WithRenderOptions bounds the conversation history included in prompts.
func WithRenderOptions(opts session.RenderOptions) Option {
	return func(o *Orchestrator) {
		o.render = opts
	}
}

// New initializes an Orchestrator.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		maxIterations:     runtime.DefaultMaxIterations,
		stepTimeout:       runtime.DefaultStepTimeout,
		generationTimeout: planner.DefaultTimeout,
		parallelism:       1,
		maxDepth:          planner.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(o)
	}

	switch {
	case o.maxIterations <= 0:
		return nil, fmt.Errorf("max iterations must be positive, got %d", o.maxIterations)
	case o.stepTimeout <= 0:
		return nil, fmt.Errorf("step timeout must be positive, got %s", o.stepTimeout)
	case o.generationTimeout <= 0:
		return nil, fmt.Errorf("generation timeout must be positive, got %s", o.generationTimeout)
	case o.parallelism <= 0:
		return nil, fmt.Errorf("parallelism must be positive, got %d", o.parallelism)
	case o.maxDepth <= 0:
		return nil, fmt.Errorf("max depth must be positive, got %d", o.maxDepth)
	}

	if o.registry == nil {
		o.registry = registry.NewRegistry()
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	genOpts := []planner.Option{
		planner.WithTimeout(o.generationTimeout),
		planner.WithMaxDepth(o.maxDepth),
		planner.WithLogger(o.logger),
		planner.WithLifecycleHooks(o.hooks),
	}
	execOpts := []runtime.Option{
		runtime.WithMaxIterations(o.maxIterations),
		runtime.WithStepTimeout(o.stepTimeout),
		runtime.WithParallelism(o.parallelism),
		runtime.WithLogger(o.logger),
		runtime.WithLifecycleHooks(o.hooks),
	}
	if o.tracer != nil {
		genOpts = append(genOpts, planner.WithTracer(o.tracer))
		execOpts = append(execOpts, runtime.WithTracer(o.tracer))
	}

	o.generator = planner.New(o.reasoner, genOpts...)
	o.executor = runtime.NewExecutor(o.registry, execOpts...)
	return o, nil
}

// Registry returns the capability registry.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Reasoner returns the configured reasoning service, or nil.
func (o *Orchestrator) Reasoner() ports.ReasoningService {
	return o.reasoner
}

// Capabilities lists the registered capabilities sorted by name.
func (o *Orchestrator) Capabilities() iter.Seq[domain.CapabilityInfo] {
	return o.registry.List()
}

// RunOption configures a single Generate, Execute or RunGoal call.
type RunOption func(*runConfig)

type runConfig struct {
	retries int
	inputs  map[string]any
}

// WithRetries asks the reasoning service again, up to n more times, when a
// generated plan is malformed or invalid. The default is no retry.
func WithRetries(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithInputs provides named values that plan steps may reference.
func WithInputs(inputs map[string]any) RunOption {
	return func(c *runConfig) {
		c.inputs = inputs
	}
}

func newRunConfig(opts []RunOption) runConfig {
	var c runConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Generate builds a validated plan for goal.
// history may be nil; when present it is rendered into the prompt but never modified.
func (o *Orchestrator) Generate(ctx context.Context, goal string, history *session.Session, opts ...RunOption) (*domain.Plan, error) {
	cfg := newRunConfig(opts)
	return o.generate(ctx, goal, history, cfg)
}

func (o *Orchestrator) generate(ctx context.Context, goal string, history *session.Session, cfg runConfig) (*domain.Plan, error) {
	req := planner.Request{
		Goal:     goal,
		Catalog:  o.registry,
		History:  history,
		Inputs:   slices.Sorted(maps.Keys(cfg.inputs)),
		Rendered: o.render,
	}

	var err error
	for attempt := 0; attempt <= cfg.retries; attempt++ {
		var plan *domain.Plan
		plan, err = o.generator.Generate(ctx, req)
		if err == nil {
			return plan, nil
		}
		if !retryable(ctx, err) {
			return nil, err
		}
		if attempt < cfg.retries {
			o.logger.Debug("Retrying plan generation", "attempt", attempt+1, "err", err)
		}
	}
	return nil, err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, domain.ErrEmptyGoal) {
		return false
	}
	var invalid *domain.PlanValidationError
	var failed *domain.PlanGenerationError
	return errors.As(err, &invalid) || errors.As(err, &failed)
}

// Execute validates and runs a plan built outside Generate, such as one loaded
// from a file or built with the dsl package. Use WithInputs to bind the plan's
// declared inputs. An invalid plan returns *domain.PlanValidationError and no result.
func (o *Orchestrator) Execute(ctx context.Context, plan *domain.Plan, opts ...RunOption) (*domain.RunResult, error) {
	if err := o.Validate(plan); err != nil {
		return nil, err
	}
	cfg := newRunConfig(opts)
	return o.executor.Execute(ctx, plan, cfg.inputs)
}

// Validate checks a plan against the registered capabilities without running it.
func (o *Orchestrator) Validate(plan *domain.Plan) error {
	return planner.Validate(plan, o.registry.Snapshot())
}

// RunGoal generates a plan for goal, executes it and returns its result.
//
// On success the goal and the result are appended to history as a user turn
// and an assistant turn. On failure history is left untouched and the partial
// RunResult, if execution started, is returned alongside the error.
func (o *Orchestrator) RunGoal(ctx context.Context, goal string, history *session.Session, opts ...RunOption) (*domain.RunResult, error) {
	clean, err := SanitizeGoal(goal)
	if err != nil {
		return nil, err
	}
	cfg := newRunConfig(opts)

	plan, err := o.generate(ctx, clean, history, cfg)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("Executing plan", "plan_id", plan.ID, "steps", len(plan.Steps))
	result, err := o.executor.Execute(ctx, plan, cfg.inputs)
	if err != nil {
		return result, err
	}

	if history != nil {
		history.Add(domain.RoleUser, clean)
		history.Add(domain.RoleAssistant, result.Output)
	}
	return result, nil
}

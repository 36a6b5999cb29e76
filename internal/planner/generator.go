package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultMaxDepth = 4
)

// Catalog provides the capabilities a plan may use.
type Catalog interface {
	Snapshot(exclude ...string) *registry.Snapshot
}

// Request is one planning call.
type Request struct {
	Goal     string
	Catalog  Catalog
	History  *session.Session
	Inputs   []string
	Rendered session.RenderOptions
}

// Generator turns goals into validated plans with a single reasoning service call.
// It never retries; callers decide whether to ask again.
type Generator struct {
	reasoner ports.ReasoningService
	timeout  time.Duration
	maxDepth int
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	tracer   trace.Tracer
}

// Option configures the Generator.
type Option func(*Generator)

// WithTimeout bounds the reasoning service call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMaxDepth limits how deeply plans may nest through capabilities that plan again.
func WithMaxDepth(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxDepth = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Generator) {
		g.hooks = hooks
	}
}

// WithTracer sets the tracer used for generation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Generator) {
		g.tracer = tracer
	}
}

// New creates a Generator backed by reasoner.
func New(reasoner ports.ReasoningService, opts ...Option) *Generator {
	g := &Generator{
		reasoner: reasoner,
		timeout:  DefaultTimeout,
		maxDepth: DefaultMaxDepth,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer("github.com/aretw0/conductor/planner"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds a plan for req.Goal.
//
// Capabilities currently executing in ctx are hidden from the plan, so a
// capability that plans cannot schedule itself.
// Failures are *domain.PlanGenerationError or *domain.PlanValidationError.
func (g *Generator) Generate(ctx context.Context, req Request) (plan *domain.Plan, err error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "planner.generate", trace.WithAttributes(
		attribute.Int("goal.length", len(req.Goal)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("plan.id", plan.ID), attribute.Int("plan.steps", len(plan.Steps)))
		}
		span.End()
		g.emit(ctx, req.Goal, plan, time.Since(start), err)
	}()

	if g.reasoner == nil {
		return nil, &domain.PlanGenerationError{Reason: "no reasoning service configured"}
	}
	if strings.TrimSpace(req.Goal) == "" {
		return nil, &domain.PlanGenerationError{Reason: "empty goal", Cause: domain.ErrEmptyGoal}
	}

	chain := domain.Invocations(ctx)
	if len(chain) >= g.maxDepth {
		return nil, &domain.PlanGenerationError{
			Reason: fmt.Sprintf("nesting depth %d exceeds limit of %d (%s)", len(chain), g.maxDepth, strings.Join(chain, " > ")),
		}
	}

	snap := req.Catalog.Snapshot(chain...)
	history := ""
	if req.History != nil {
		history = req.History.Render(req.Rendered)
	}
	prompt := BuildPrompt(req.Goal, snap.List(), req.Inputs, history)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.Debug("Requesting plan", "capabilities", snap.Len(), "excluded", chain, "timeout", g.timeout)
	raw, err := g.reasoner.Complete(callCtx, prompt)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		reason := "reasoning service failed"
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			reason = fmt.Sprintf("reasoning service timed out after %s", g.timeout)
		}
		return nil, &domain.PlanGenerationError{Reason: reason, Cause: err}
	}

	plan, err = ParsePlan(raw)
	if err != nil {
		return nil, &domain.PlanGenerationError{Reason: "malformed response", Cause: err}
	}
	plan.ID = uuid.NewString()
	plan.Goal = req.Goal
	// Only caller-declared inputs exist at execution time.
	plan.Inputs = slices.Clone(req.Inputs)

	if err := Validate(plan, snap); err != nil {
		g.logger.Debug("Rejected plan", "err", err, "raw", raw)
		return nil, err
	}
	return plan, nil
}

func (g *Generator) emit(ctx context.Context, goal string, plan *domain.Plan, d time.Duration, err error) {
	if g.hooks.OnPlanGenerated == nil {
		return
	}
	ev := &domain.PlanEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventPlanGenerated},
		Goal:      goal,
		Duration:  d,
		Err:       err,
	}
	if plan != nil {
		ev.PlanID = plan.ID
		ev.Steps = len(plan.Steps)
	}
	g.hooks.OnPlanGenerated(ctx, ev)
}

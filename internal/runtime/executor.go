package runtime

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync/atomic"
	"time"

	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxIterations = 100
	DefaultStepTimeout   = 30 * time.Second
)

// Catalog resolves capabilities at execution time.
type Catalog interface {
	Lookup(name string) (registry.Capability, error)
	ValidateArgs(name string, args map[string]any) (map[string]any, error)
}

// Executor runs validated plans against a catalog of capabilities.
type Executor struct {
	catalog       Catalog
	maxIterations int
	stepTimeout   time.Duration
	parallelism   int
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	tracer        trace.Tracer
}

// Option configures the Executor.
type Option func(*Executor)

// WithMaxIterations caps loop iterations across a whole run.
func WithMaxIterations(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithStepTimeout bounds each capability invocation.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

// WithParallelism lets up to n independent steps run at once. 1 (the default) is sequential.
func WithParallelism(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithTracer sets the tracer used for run and step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// NewExecutor creates an Executor for catalog.
func NewExecutor(catalog Catalog, opts ...Option) *Executor {
	e := &Executor{
		catalog:       catalog,
		maxIterations: DefaultMaxIterations,
		stepTimeout:   DefaultStepTimeout,
		parallelism:   1,
		logger:        logging.NewNop(),
		tracer:        otel.Tracer("github.com/aretw0/conductor/runtime"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the state of one Execute call.
type run struct {
	id         string
	plan       *domain.Plan
	scope      *scope
	iterations atomic.Int64
}

// Execute runs plan with the given inputs and returns the final step's output as text.
//
// Execution stops at the first failure. The returned RunResult is never nil:
// on failure or cancellation it reports how many steps completed.
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan, inputs map[string]any) (result *domain.RunResult, err error) {
	r := &run{
		id:    uuid.NewString(),
		plan:  plan,
		scope: newScope(inputs),
	}
	result = &domain.RunResult{
		RunID:  r.id,
		PlanID: plan.ID,
		Goal:   plan.Goal,
		Total:  len(plan.Steps),
		Steps:  []domain.StepRecord{},
	}

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "runtime.execute", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.String("plan.id", plan.ID),
		attribute.Int("plan.steps", len(plan.Steps)),
	))
	defer func() {
		result.Status = status(ctx, err)
		span.SetAttributes(attribute.Int("run.completed", result.Completed), attribute.String("run.status", string(result.Status)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		e.logger.Debug("Run finished", "run_id", r.id, "status", result.Status, "completed", result.Summary(), "err", err)
		if e.hooks.OnRunEnd != nil {
			e.hooks.OnRunEnd(ctx, &domain.RunEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRunEnd, RunID: r.id},
				PlanID:    plan.ID,
				Completed: result.Completed,
				Total:     result.Total,
				Status:    result.Status,
				Duration:  time.Since(start),
				Err:       err,
			})
		}
	}()

	if len(plan.Steps) == 0 {
		return result, nil
	}

	if e.parallelism > 1 {
		err = e.executeWaves(ctx, r, result)
	} else {
		err = e.executeSequential(ctx, r, result)
	}
	if err != nil {
		return result, err
	}

	last := plan.Steps[len(plan.Steps)-1]
	out, _ := r.scope.get(last.ID)
	result.Output = Text(out)
	return result, nil
}

func status(ctx context.Context, err error) domain.RunStatus {
	switch {
	case err == nil:
		return domain.RunCompleted
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return domain.RunCanceled
	}
	return domain.RunFailed
}

func (e *Executor) executeSequential(ctx context.Context, r *run, result *domain.RunResult) error {
	for _, step := range r.plan.Steps {
		rec, err := e.runStep(ctx, r, step)
		if err != nil {
			result.Steps = append(result.Steps, rec)
			return err
		}
		result.Steps = append(result.Steps, rec)
		result.Completed++
	}
	return nil
}

// executeWaves runs steps grouped by dependency depth. Steps in the same wave
// never reference each other, so their relative order cannot change outputs.
// Records are reported in declared order.
func (e *Executor) executeWaves(ctx context.Context, r *run, result *domain.RunResult) error {
	order := make(map[string]int, len(r.plan.Steps))
	for i, step := range r.plan.Steps {
		order[step.ID] = i
	}
	defer slices.SortStableFunc(result.Steps, func(a, b domain.StepRecord) int {
		return cmp.Compare(order[a.StepID], order[b.StepID])
	})

	for _, wave := range waves(r.plan.Steps) {
		records := make([]*domain.StepRecord, len(wave))
		errs := make([]error, len(wave))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)
		for i, idx := range wave {
			g.Go(func() error {
				rec, err := e.runStep(gctx, r, r.plan.Steps[idx])
				records[i] = &rec
				errs[i] = err
				return err
			})
		}
		groupErr := g.Wait()

		failed := -1
		if groupErr != nil {
			failed = firstFailure(ctx, errs)
		}
		for i, rec := range records {
			switch {
			case rec == nil:
			case errs[i] == nil:
				result.Steps = append(result.Steps, *rec)
				result.Completed++
			case i == failed:
				result.Steps = append(result.Steps, *rec)
			}
		}
		if groupErr != nil {
			if failed < 0 {
				return groupErr
			}
			return errs[failed]
		}
	}
	return nil
}

// firstFailure returns the index of the earliest error in declared order that
// was not caused by a sibling failing, or -1.
func firstFailure(parent context.Context, errs []error) int {
	for i, err := range errs {
		if err == nil {
			continue
		}
		if parent.Err() == nil && errors.Is(err, context.Canceled) {
			continue
		}
		return i
	}
	return -1
}

// waves groups step indexes by dependency depth, keeping declared order within a wave.
// Waves are returned in execution order and each holds ascending indexes.
//
// A step that references a step declared at or after it cannot be ordered by
// its dependencies. It becomes a barrier: it runs alone after every earlier
// step and before every later one, exactly where sequential execution puts it,
// so the reference fails the same way.
func waves(steps []domain.Step) [][]int {
	declared := make(map[string]bool, len(steps))
	for _, step := range steps {
		declared[step.ID] = true
	}

	level := make(map[string]int, len(steps))
	var out [][]int
	floor := 0
	for i, step := range steps {
		l := floor
		forward := false
		for _, ref := range step.Refs() {
			dep, ok := level[ref.Ref]
			switch {
			case ok:
				l = max(l, dep+1)
			case declared[ref.Ref]:
				forward = true
			}
		}
		if forward {
			l = len(out)
			floor = l + 1
		}
		level[step.ID] = l
		for len(out) <= l {
			out = append(out, nil)
		}
		out[l] = append(out[l], i)
	}
	return out
}

// runStep executes one step. The record is filled even on failure, with Error set.
func (e *Executor) runStep(ctx context.Context, r *run, step domain.Step) (rec domain.StepRecord, err error) {
	start := time.Now()
	rec = domain.StepRecord{StepID: step.ID, Capability: step.Capability}
	defer func() {
		rec.Duration = time.Since(start)
		if err != nil {
			rec.Error = err.Error()
		}
	}()

	if err := ctx.Err(); err != nil {
		return rec, &domain.CapabilityExecutionError{StepID: step.ID, Capability: step.Capability, Cause: err}
	}

	capability, err := e.catalog.Lookup(step.Capability)
	if err != nil {
		return rec, err
	}

	f := frame{parent: r.scope}
	if step.When != nil {
		ok, err := e.check(f, step.ID, step.When)
		if err != nil {
			return rec, e.wrap(step, 0, err)
		}
		if !ok {
			rec.Skipped = true
			r.scope.set(step.ID, nil)
			e.emitSkip(ctx, r, step)
			return rec, nil
		}
	}

	var out any
	if step.Repeat == nil {
		args, err := f.resolveArgs(step.ID, step.Args)
		if err != nil {
			return rec, err
		}
		rec.Args = args
		out, err = e.invoke(ctx, r, step, capability, args, 0)
		if err != nil {
			return rec, err
		}
	} else {
		out, rec.Iterations, err = e.loop(ctx, r, step, capability)
		if err != nil {
			return rec, err
		}
	}

	r.scope.set(step.ID, out)
	rec.Output = out
	return rec, nil
}

func (e *Executor) loop(ctx context.Context, r *run, step domain.Step, capability registry.Capability) (any, int, error) {
	rep := step.Repeat
	outputs := []any{}

	var items []any
	if rep.Over != nil {
		src, err := frame{parent: r.scope}.resolve(step.ID, *rep.Over)
		if err != nil {
			return nil, 0, err
		}
		items, err = listOf(src)
		if err != nil {
			return nil, 0, e.wrap(step, 0, fmt.Errorf("repeat.over: %w", err))
		}
	}

	var last any
	for i := 0; ; i++ {
		switch {
		case rep.Over != nil && i >= len(items):
			return outputs, i, nil
		case rep.Times > 0 && i >= rep.Times:
			return outputs, i, nil
		case rep.Max > 0 && i >= rep.Max:
			return outputs, i, nil
		}

		f := frame{parent: r.scope, locals: map[string]any{}}
		if rep.As != "" {
			if rep.Over != nil {
				f.locals[rep.As] = items[i]
			} else {
				f.locals[rep.As] = i
			}
		}

		if rep.While != nil {
			f.locals[step.ID] = last
			ok, err := e.check(f, step.ID, rep.While)
			if err != nil {
				return nil, i, e.wrap(step, i+1, err)
			}
			if !ok {
				return outputs, i, nil
			}
			delete(f.locals, step.ID)
		}

		if n := r.iterations.Add(1); n > int64(e.maxIterations) {
			return nil, i, &domain.PlanLoopLimitExceeded{StepID: step.ID, Limit: e.maxIterations}
		}

		args, err := f.resolveArgs(step.ID, step.Args)
		if err != nil {
			return nil, i, err
		}
		out, err := e.invoke(ctx, r, step, capability, args, i+1)
		if err != nil {
			return nil, i, err
		}
		outputs = append(outputs, out)
		last = out
	}
}

func (e *Executor) check(f frame, stepID string, c *domain.Condition) (bool, error) {
	left, err := f.resolve(stepID, c.Ref)
	if err != nil {
		return false, err
	}
	var right any
	if !c.Op.Unary() {
		right, err = f.resolve(stepID, c.Value)
		if err != nil {
			return false, err
		}
	}
	return evaluate(c.Op, left, right)
}

// invoke validates args and calls the handler under the step timeout.
// The handler runs in its own goroutine so a handler ignoring ctx cannot stall the run.
func (e *Executor) invoke(ctx context.Context, r *run, step domain.Step, capability registry.Capability, args map[string]any, iteration int) (any, error) {
	checked, err := e.catalog.ValidateArgs(step.Capability, args)
	if err != nil {
		return nil, e.wrap(step, iteration, err)
	}

	ctx, span := e.tracer.Start(ctx, "runtime.step", trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.capability", step.Capability),
		attribute.Int("step.iteration", iteration),
	))
	defer span.End()

	e.logger.Debug("Invoking capability", "run_id", r.id, "step_id", step.ID, "capability", step.Capability, "iteration", iteration)
	if e.hooks.OnStepStart != nil {
		e.hooks.OnStepStart(ctx, &domain.StepEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepStart, RunID: r.id},
			PlanID:     r.plan.ID,
			StepID:     step.ID,
			Capability: step.Capability,
			Iteration:  iteration,
			Args:       checked,
		})
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(domain.WithInvocation(ctx, step.Capability), e.stepTimeout)
	defer cancel()

	type outcome struct {
		out any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("capability panicked: %v", p)}
			}
		}()
		out, err := capability.Handler(callCtx, checked)
		done <- outcome{out: out, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-callCtx.Done():
		select {
		case res = <-done:
		default:
			res.err = callCtx.Err()
		}
	}
	if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
		res.err = fmt.Errorf("timed out after %s: %w", e.stepTimeout, res.err)
	}

	if e.hooks.OnStepEnd != nil {
		e.hooks.OnStepEnd(ctx, &domain.StepEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepEnd, RunID: r.id},
			PlanID:     r.plan.ID,
			StepID:     step.ID,
			Capability: step.Capability,
			Iteration:  iteration,
			Args:       checked,
			Output:     res.out,
			Duration:   time.Since(start),
			Err:        res.err,
		})
	}

	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		return nil, e.wrap(step, iteration, res.err)
	}
	return res.out, nil
}

func (e *Executor) emitSkip(ctx context.Context, r *run, step domain.Step) {
	e.logger.Debug("Skipping step", "run_id", r.id, "step_id", step.ID)
	if e.hooks.OnStepEnd != nil {
		e.hooks.OnStepEnd(ctx, &domain.StepEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepEnd, RunID: r.id},
			PlanID:     r.plan.ID,
			StepID:     step.ID,
			Capability: step.Capability,
			Skipped:    true,
		})
	}
}

func (e *Executor) wrap(step domain.Step, iteration int, err error) error {
	var unresolved *domain.UnresolvedReferenceError
	if errors.As(err, &unresolved) {
		return err
	}
	return &domain.CapabilityExecutionError{
		StepID:     step.ID,
		Capability: step.Capability,
		Iteration:  iteration,
		Cause:      err,
	}
}

func listOf(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

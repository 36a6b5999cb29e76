package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/conductor/pkg/domain"
)

// ComposeHooks fans every event out to each set of hooks, in order.
func ComposeHooks(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		out.OnPlanGenerated = chain(out.OnPlanGenerated, h.OnPlanGenerated)
		out.OnStepStart = chain(out.OnStepStart, h.OnStepStart)
		out.OnStepEnd = chain(out.OnStepEnd, h.OnStepEnd)
		out.OnRunEnd = chain(out.OnRunEnd, h.OnRunEnd)
	}
	return out
}

func chain[E any](first, next func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		next(ctx, e)
	}
}

// LogHooks logs every lifecycle event. Failures are logged at warn level, the rest at debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPlanGenerated: func(ctx context.Context, e *domain.PlanEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "Plan rejected", "goal", e.Goal, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "Plan generated", "plan_id", e.PlanID, "steps", e.Steps, "duration", e.Duration)
		},
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "Step started", "run_id", e.RunID, "step_id", e.StepID, "capability", e.Capability, "iteration", e.Iteration)
		},
		OnStepEnd: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "Step failed", "run_id", e.RunID, "step_id", e.StepID, "capability", e.Capability, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "Step finished", "run_id", e.RunID, "step_id", e.StepID, "skipped", e.Skipped, "duration", e.Duration)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			level := slog.LevelDebug
			if e.Err != nil {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "Run finished", "run_id", e.RunID, "status", e.Status, "completed", e.Completed, "total", e.Total, "duration", e.Duration, "err", e.Err)
		},
	}
}

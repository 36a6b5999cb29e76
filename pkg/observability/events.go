package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
)

// EventHooks publishes every lifecycle event to pub. The topic is the event type.
// Publish failures are logged and never interrupt a run.
func EventHooks(pub ports.EventPublisher, logger *slog.Logger) domain.LifecycleHooks {
	publish := func(ctx context.Context, topic domain.EventType, event any) {
		if err := pub.Publish(context.WithoutCancel(ctx), string(topic), event); err != nil {
			logger.Warn("Failed to publish event", "topic", topic, "err", err)
		}
	}
	return domain.LifecycleHooks{
		OnPlanGenerated: func(ctx context.Context, e *domain.PlanEvent) { publish(ctx, domain.EventPlanGenerated, e) },
		OnStepStart:     func(ctx context.Context, e *domain.StepEvent) { publish(ctx, domain.EventStepStart, e) },
		OnStepEnd:       func(ctx context.Context, e *domain.StepEvent) { publish(ctx, domain.EventStepEnd, e) },
		OnRunEnd:        func(ctx context.Context, e *domain.RunEvent) { publish(ctx, domain.EventRunEnd, e) },
	}
}

package ports

import "context"

// EventPublisher forwards lifecycle events to an external sink.
// Publishing is fire-and-forget from the orchestrator's point of view.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

package ports

import "context"

// CompletionRequest is a single prompt sent to a reasoning service.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ReasoningService is the external AI backend.
// Implementations must honor ctx cancellation and must not retry internally.
type ReasoningService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ReasoningFunc adapts a function to ReasoningService.
type ReasoningFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f.
func (f ReasoningFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

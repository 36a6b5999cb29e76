package domain

import (
	"context"
	"slices"
)

type invocationKey struct{}

// WithInvocation records that capability is executing within ctx.
// Nested planning uses the chain to hide running capabilities from itself.
func WithInvocation(ctx context.Context, capability string) context.Context {
	chain := Invocations(ctx)
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, invocationKey{}, append(next, capability))
}

// Invocations returns the chain of capabilities executing in ctx, outermost first.
func Invocations(ctx context.Context) []string {
	chain, _ := ctx.Value(invocationKey{}).([]string)
	return slices.Clone(chain)
}

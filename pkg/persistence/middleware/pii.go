package middleware

import (
	"context"
	"regexp"
	"slices"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
)

// Mask replaces every redacted span.
const Mask = "***"

type piiMiddleware struct {
	next     ports.HistoryStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks turn content matching the patterns
// before it reaches the store. Turns held in memory by the caller are untouched.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.HistoryStore) ports.HistoryStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	masked := slices.Clone(turns)
	for i := range masked {
		for _, p := range m.patterns {
			masked[i].Content = p.ReplaceAllString(masked[i].Content, Mask)
		}
	}
	return m.next.Append(ctx, sessionID, masked...)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Package scripted provides a reasoning service that replays canned responses.
// It is used for offline runs and deterministic tests.
package scripted

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/conductor/pkg/ports"
)

// ErrExhausted is returned once every scripted response has been consumed.
var ErrExhausted = errors.New("scripted reasoner: no responses left")

// Response is one scripted answer. Err, when set, is returned instead of Text.
type Response struct {
	Text string
	Err  error
}

// Reasoner replays responses in order and records every request it receives.
type Reasoner struct {
	mu        sync.Mutex
	responses []Response
	requests  []ports.CompletionRequest
	repeat    bool
}

// New creates a Reasoner answering with texts in order.
func New(texts ...string) *Reasoner {
	r := &Reasoner{}
	for _, t := range texts {
		r.responses = append(r.responses, Response{Text: t})
	}
	return r
}

// Repeat makes the last response answer every further request.
func (r *Reasoner) Repeat() *Reasoner {
	r.mu.Lock()
	r.repeat = true
	r.mu.Unlock()
	return r
}

// Push queues more responses.
func (r *Reasoner) Push(responses ...Response) {
	r.mu.Lock()
	r.responses = append(r.responses, responses...)
	r.mu.Unlock()
}

// Complete implements ports.ReasoningService.
func (r *Reasoner) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)

	if len(r.responses) == 0 {
		return "", ErrExhausted
	}
	next := r.responses[0]
	if len(r.responses) > 1 || !r.repeat {
		r.responses = r.responses[1:]
	}
	return next.Text, next.Err
}

// Requests returns the requests received so far.
func (r *Reasoner) Requests() []ports.CompletionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.CompletionRequest, len(r.requests))
	copy(out, r.requests)
	return out
}

// Calls returns how many requests were received.
func (r *Reasoner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

var _ ports.ReasoningService = (*Reasoner)(nil)

package conductor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/session"
)

// ChatRunner drives a line-based conversation: each input line is a goal,
// each answer is the output of its plan.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type ChatRunner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer

	// Sessions persists the conversation after every successful turn.
	// If nil, the conversation lives only in memory.
	Sessions *session.Manager

	// Options are applied to every RunGoal call.
	Options []RunOption

	Logger *slog.Logger
}

// ContentRenderer transforms an answer before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// Run reads goals until EOF, "exit" or "quit", or until ctx is done.
// A failed goal is reported and the conversation continues.
func (r *ChatRunner) Run(ctx context.Context, o *Orchestrator, sessionID string) (*session.Session, error) {
	if r.Input == nil {
		return nil, fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return nil, fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	sess, err := r.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	logger = logger.With("session_id", sess.ID())

	if !r.Headless {
		fmt.Fprintf(r.Output, "--- Conductor chat (session %s) ---\n", sess.ID())
	}

	lines := bufio.NewReader(r.Input)
	for {
		if ctx.Err() != nil {
			return sess, nil
		}
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}

		text, readErr := lines.ReadString('\n')
		goal := strings.TrimSpace(text)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return sess, fmt.Errorf("input error: %w", readErr)
		}

		switch {
		case goal == "exit" || goal == "quit":
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return sess, nil
		case goal != "":
			r.turn(ctx, o, sess, goal, logger)
		}

		if readErr != nil {
			return sess, nil
		}
	}
}

func (r *ChatRunner) open(ctx context.Context, sessionID string) (*session.Session, error) {
	if r.Sessions == nil {
		return session.New(sessionID), nil
	}
	sess, err := r.Sessions.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return sess, nil
}

func (r *ChatRunner) turn(ctx context.Context, o *Orchestrator, sess *session.Session, goal string, logger *slog.Logger) {
	result, err := o.RunGoal(ctx, goal, sess, r.Options...)
	if err != nil {
		logger.Debug("Goal failed", "err", err)
		fmt.Fprintf(r.Output, "Error: %v\n", err)
		if result != nil && result.Status != domain.RunCompleted {
			fmt.Fprintf(r.Output, "(%s)\n", result.Summary())
		}
		return
	}

	answer := result.Output
	if r.Renderer != nil {
		if rendered, err := r.Renderer(answer); err == nil {
			answer = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(answer))

	if r.Sessions != nil {
		if err := r.Sessions.Commit(ctx, sess); err != nil {
			logger.Warn("Failed to persist session", "err", err)
			fmt.Fprintf(r.Output, "Warning: history not saved: %v\n", err)
		}
	}
}

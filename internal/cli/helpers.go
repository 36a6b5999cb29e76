package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/config"
	"github.com/aretw0/conductor/pkg/domain"
)

// Exit codes reported by the conductor command.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitPlanning    = 3
	ExitExecution   = 4
	ExitInterrupted = 130
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// CreateLogger configures the application logger from cfg.
// debug forces the debug level regardless of the configured one.
func CreateLogger(cfg config.LogConfig, debug bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	return logging.New(level, cfg.Format), nil
}

// Open loads the configuration at path and wires an App from it.
func Open(ctx context.Context, path string, debug bool) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &UsageError{Err: err}
	}
	logger, err := CreateLogger(cfg.Log, debug)
	if err != nil {
		return nil, &UsageError{Err: err}
	}
	return Build(ctx, cfg, logger)
}

// UsageError marks errors caused by invalid flags or configuration.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	var (
		usage      *UsageError
		invalid    *domain.PlanValidationError
		generation *domain.PlanGenerationError
		execution  *domain.CapabilityExecutionError
		unresolved *domain.UnresolvedReferenceError
		loopLimit  *domain.PlanLoopLimitExceeded
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &usage),
		errors.Is(err, conductor.ErrGoalTooLarge),
		errors.Is(err, conductor.ErrInvalidUTF8),
		errors.Is(err, domain.ErrEmptyGoal):
		return ExitUsage
	case errors.As(err, &invalid), errors.As(err, &generation):
		return ExitPlanning
	case errors.As(err, &execution), errors.As(err, &unresolved), errors.As(err, &loopLimit):
		return ExitExecution
	default:
		return ExitFailure
	}
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/presentation/graph"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/session"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	ConfigPath string
	Debug      bool
	Goal       string
	SessionID  string
	Inputs     string // Raw JSON object
	JSON       bool
	Output     io.Writer
}

// ParseInputs decodes the --inputs flag.
func ParseInputs(raw string) (map[string]any, error) {
	return parseObject("--inputs", raw)
}

func parseObject(flag, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, &UsageError{Err: fmt.Errorf("error parsing %s JSON: %w", flag, err)}
	}
	return obj, nil
}

// RunGoal plans and executes one goal, optionally within a persisted session.
func RunGoal(opts RunOptions) error {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	inputs, err := ParseInputs(opts.Inputs)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := Open(sigCtx, opts.ConfigPath, opts.Debug)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(sigCtx))

	runOpts := append(app.RunOptions(), conductor.WithInputs(inputs))

	var result *domain.RunResult
	if opts.SessionID != "" {
		_, err = app.Sessions.Update(sigCtx, opts.SessionID, func(ctx context.Context, sess *session.Session) error {
			var runErr error
			result, runErr = app.Orchestrator.RunGoal(ctx, opts.Goal, sess, runOpts...)
			return runErr
		})
	} else {
		result, err = app.Orchestrator.RunGoal(sigCtx, opts.Goal, nil, runOpts...)
	}
	return report(out, result, err, opts)
}

func report(out io.Writer, result *domain.RunResult, err error, opts RunOptions) error {
	if opts.JSON {
		payload := map[string]any{"result": result}
		if err != nil {
			payload["error"] = err.Error()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(payload); encErr != nil {
			return encErr
		}
		return err
	}

	if err != nil {
		if result != nil {
			printSystemMessage(out, "Run %s (%s).", result.Status, result.Summary())
		}
		return err
	}
	fmt.Fprintln(out, result.Output)
	return nil
}

// PrintGraph writes the Mermaid graph of plan, overlaid with result when given.
func PrintGraph(out io.Writer, plan *domain.Plan, result *domain.RunResult) {
	fmt.Fprint(out, graph.GenerateMermaid(plan, graph.OverlayFromResult(result)))
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// PlanOptions configures the plan subcommands.
type PlanOptions struct {
	ConfigPath string
	Debug      bool
	// File is a JSON or YAML plan document. "-" reads stdin.
	File string
	// Goal asks the reasoning service for a plan instead of reading File.
	Goal   string
	Inputs string
	Graph  bool
	JSON   bool
	Input  io.Reader
	Output io.Writer
}

func (o PlanOptions) out() io.Writer {
	if o.Output == nil {
		return os.Stdout
	}
	return o.Output
}

// LoadPlan reads a plan document. YAML is used for .yaml and .yml files, JSON otherwise.
func LoadPlan(path string, stdin io.Reader) (*domain.Plan, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, &UsageError{Err: fmt.Errorf("read plan: %w", err)}
	}

	var plan domain.Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &plan)
	default:
		err = json.Unmarshal(data, &plan)
	}
	if err != nil {
		return nil, &UsageError{Err: fmt.Errorf("decode plan %s: %w", path, err)}
	}
	return &plan, nil
}

func (o PlanOptions) plan(ctx context.Context, app *App) (*domain.Plan, error) {
	switch {
	case o.File != "" && o.Goal != "":
		return nil, &UsageError{Err: errors.New("use either a plan file or --goal, not both")}
	case o.File != "":
		return LoadPlan(o.File, o.Input)
	case o.Goal != "":
		inputs, err := ParseInputs(o.Inputs)
		if err != nil {
			return nil, err
		}
		clean, err := conductor.SanitizeGoal(o.Goal)
		if err != nil {
			return nil, err
		}
		return app.Orchestrator.Generate(ctx, clean, nil, append(app.RunOptions(), conductor.WithInputs(inputs))...)
	default:
		return nil, &UsageError{Err: errors.New("a plan file or --goal is required")}
	}
}

// ValidatePlan checks a plan against the configured capabilities.
func ValidatePlan(opts PlanOptions) error {
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		plan, err := opts.plan(ctx, app)
		if err != nil {
			return err
		}
		if err := app.Orchestrator.Validate(plan); err != nil {
			var invalid *domain.PlanValidationError
			if errors.As(err, &invalid) {
				for _, p := range invalid.Problems {
					fmt.Fprintf(opts.out(), "- %s\n", p)
				}
			}
			return err
		}
		printSystemMessage(opts.out(), "Plan is valid (%d steps).", len(plan.Steps))
		return nil
	})
}

// ExecPlan validates and executes a plan.
func ExecPlan(opts PlanOptions) error {
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		plan, err := opts.plan(ctx, app)
		if err != nil {
			return err
		}
		inputs, err := ParseInputs(opts.Inputs)
		if err != nil {
			return err
		}
		result, err := app.Orchestrator.Execute(ctx, plan, conductor.WithInputs(inputs))
		if opts.Graph {
			PrintGraph(opts.out(), plan, result)
			return err
		}
		return report(opts.out(), result, err, RunOptions{JSON: opts.JSON})
	})
}

// GraphPlan prints the Mermaid graph of a plan.
func GraphPlan(opts PlanOptions) error {
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		plan, err := opts.plan(ctx, app)
		if err != nil {
			return err
		}
		PrintGraph(opts.out(), plan, nil)
		return nil
	})
}

func withApp(configPath string, debug bool, fn func(context.Context, *App) error) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := Open(sigCtx, configPath, debug)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(sigCtx))
	return fn(sigCtx, app)
}

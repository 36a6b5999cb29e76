package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/registry"
)

var argKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Runner turns configured external commands into capabilities.
// Only commands declared in the manifest can run: plan arguments never
// become command-line flags. They are passed as a JSON object on stdin and
// as CONDUCTOR_ARG_<NAME> environment variables.
type Runner struct {
	baseDir string
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExitError reports a command that failed.
type ExitError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("tool %q failed", e.Tool)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Capabilities converts every tool to a capability.
func (r *Runner) Capabilities(tools []ToolConfig) []registry.Capability {
	caps := make([]registry.Capability, 0, len(tools))
	for _, tool := range tools {
		caps = append(caps, r.Capability(tool))
	}
	return caps
}

// Capability converts one tool to a capability.
func (r *Runner) Capability(tool ToolConfig) registry.Capability {
	c := registry.New(tool.Name, tool.Description, func(ctx context.Context, args map[string]any) (any, error) {
		return r.run(ctx, tool, args)
	}, tool.Parameters...)
	c.Info.Output = tool.Output
	return c
}

func (r *Runner) run(ctx context.Context, tool ToolConfig, args map[string]any) (any, error) {
	if tool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tool.Timeout)
		defer cancel()
	}

	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = cmd.Environ()
	for k, v := range tool.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range args {
		cmd.Env = append(cmd.Env, fmt.Sprintf("CONDUCTOR_ARG_%s=%s", argKey.ReplaceAllString(strings.ToUpper(k), "_"), envValue(v)))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("Process finished", "tool", tool.Name, "command", tool.Command, "duration", time.Since(start), "err", err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("tool %q: %w", tool.Name, ctxErr)
		}
		exitErr := &ExitError{Tool: tool.Name, ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitErr.ExitCode = ee.ExitCode()
		}
		return nil, exitErr
	}

	return decodeOutput(stdout.String()), nil
}

func envValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int, int64, float64, bool:
		return fmt.Sprint(val)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}

// decodeOutput returns JSON objects and arrays as structured values and anything else as trimmed text.
func decodeOutput(out string) any {
	trimmed := strings.TrimSpace(out)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}

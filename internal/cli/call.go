package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/conductor/internal/runtime"
	"github.com/aretw0/conductor/pkg/domain"
)

// CallOptions configures the capabilities call command.
type CallOptions struct {
	CapabilityOptions
	Name string
	Args string // Raw JSON object
}

// CallCapability invokes one capability directly, outside any plan.
// Arguments are checked against its parameters first, and the call is bounded
// by the configured step timeout.
func CallCapability(opts CallOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	args, err := parseObject("--args", opts.Args)
	if err != nil {
		return err
	}
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		ctx, cancel := context.WithTimeout(ctx, app.Config.Executor.StepTimeout)
		defer cancel()
		ctx = domain.WithInvocation(ctx, opts.Name)

		out, err := app.Orchestrator.Registry().Execute(ctx, opts.Name, args)
		if err != nil {
			return fmt.Errorf("capability %s: %w", opts.Name, err)
		}
		if opts.JSON {
			enc := json.NewEncoder(opts.Output)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"capability": opts.Name, "output": out})
		}
		fmt.Fprintln(opts.Output, runtime.Text(out))
		return nil
	})
}

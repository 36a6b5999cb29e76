package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
)

// DebounceInterval groups bursts of file events into one reload.
const DebounceInterval = 200 * time.Millisecond

// CapabilityOptions configures the capabilities command.
type CapabilityOptions struct {
	ConfigPath string
	Debug      bool
	JSON       bool
	// Watch reloads and reprints the list whenever the prompt directory changes.
	Watch  bool
	Output io.Writer
}

// ListCapabilities prints the registered capabilities.
func ListCapabilities(opts CapabilityOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Watch {
		return watchCapabilities(opts)
	}
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		return printCapabilities(opts.Output, app, opts.JSON)
	})
}

func printCapabilities(out io.Writer, app *App, asJSON bool) error {
	var caps []domain.CapabilityInfo
	for c := range app.Orchestrator.Capabilities() {
		caps = append(caps, c)
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(caps)
	}
	for _, c := range caps {
		fmt.Fprintf(out, "%s\t%s\n", c.Name, c.Description)
		for _, p := range c.Parameters {
			req := ""
			if p.Required {
				req = " (required)"
			}
			typ := p.Type
			if typ == "" {
				typ = "any"
			}
			fmt.Fprintf(out, "    %s: %s%s\n", p.Name, typ, req)
		}
	}
	return nil
}

// watchCapabilities rebuilds the App each time a prompt document changes.
func watchCapabilities(opts CapabilityOptions) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	for {
		app, err := Open(sigCtx, opts.ConfigPath, opts.Debug)
		if err != nil {
			return err
		}
		if app.Prompts == nil {
			app.Close(context.WithoutCancel(sigCtx))
			return &UsageError{Err: errors.New("--watch needs capabilities.prompts to be configured")}
		}

		printSystemMessage(opts.Output, "Capabilities at %s:", time.Now().Format(time.TimeOnly))
		if err := printCapabilities(opts.Output, app, opts.JSON); err != nil {
			app.Close(context.WithoutCancel(sigCtx))
			return err
		}

		changed, err := waitForChange(sigCtx, app)
		app.Close(context.WithoutCancel(sigCtx))
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		app.Logger.Info("Watcher restarting")
	}
}

// waitForChange blocks until a prompt document changes (true) or ctx is done (false).
func waitForChange(ctx context.Context, app *App) (bool, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := app.Prompts.Watch(watchCtx)
	if err != nil {
		return false, err
	}

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case id, ok := <-events:
			if !ok {
				return false, nil
			}
			app.Logger.Debug("Prompt changed", "document", id)
			timer = time.After(DebounceInterval)
		case <-timer:
			return true, nil
		}
	}
}

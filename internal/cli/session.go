package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/presentation/tui"
	"github.com/aretw0/conductor/pkg/session"
)

// ChatOptions configures the chat command.
type ChatOptions struct {
	ConfigPath string
	Debug      bool
	SessionID  string
	Headless   bool
	Input      io.Reader
	Output     io.Writer
}

// RunChat starts an interactive conversation. Every line is a goal.
func RunChat(opts ChatOptions) error {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		runner := &conductor.ChatRunner{
			Input:    opts.Input,
			Output:   opts.Output,
			Headless: opts.Headless,
			Sessions: app.Sessions,
			Options:  app.RunOptions(),
			Logger:   app.Logger,
		}
		if !opts.Headless {
			tui.PrintBanner(opts.Output, conductor.Version)
			runner.Renderer = tui.NewRenderer()
		}

		sess, err := runner.Run(ctx, app.Orchestrator, opts.SessionID)
		if sess != nil {
			app.Logger.Info("Chat ended", "session_id", sess.ID(), "turns", sess.Len())
		}
		if ctx.Err() != nil {
			if !opts.Headless {
				fmt.Fprintln(opts.Output)
				printSystemMessage(opts.Output, "Interrupted.")
			}
			return nil
		}
		return err
	})
}

// SessionOptions configures the session subcommands.
type SessionOptions struct {
	ConfigPath string
	Debug      bool
	Output     io.Writer
}

// ListSessions prints the IDs of persisted sessions.
func ListSessions(opts SessionOptions) error {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		ids, err := app.Sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Sessions:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	})
}

// ShowSession prints the turns of a session, as text or JSON.
func ShowSession(opts SessionOptions, sessionID string, asJSON bool) error {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		sess, err := app.Sessions.Load(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionID, err)
		}
		if asJSON {
			data, err := json.MarshalIndent(sess.Turns(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprint(out, sess.Render(session.RenderOptions{}))
		fmt.Fprintln(out)
		return nil
	})
}

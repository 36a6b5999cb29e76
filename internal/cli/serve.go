package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpadapter "github.com/aretw0/conductor/pkg/adapters/http"
	mcpadapter "github.com/aretw0/conductor/pkg/adapters/mcp"
)

// ServeOptions configures the serve and mcp commands.
type ServeOptions struct {
	ConfigPath string
	Debug      bool
	// Addr overrides the configured listen address.
	Addr string
	// Transport overrides the configured MCP transport (stdio or sse).
	Transport string
}

// ServeHTTP runs the HTTP API until interrupted.
func ServeHTTP(opts ServeOptions) error {
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		addr := opts.Addr
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		serverOpts := []httpadapter.Option{
			httpadapter.WithSessions(app.Sessions),
			httpadapter.WithLogger(app.Logger),
		}
		if app.Metrics != nil {
			serverOpts = append(serverOpts, httpadapter.WithMetrics(app.Metrics.Handler()))
		}
		handler, err := httpadapter.NewHandler(app.Orchestrator, serverOpts...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("Starting Conductor Server", "address", addr)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			app.Logger.Info("Start shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.Logger.Warn("Graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			app.Logger.Info("Conductor Server stopped gracefully")
			return nil
		}
	})
}

// ServeMCP exposes the orchestrator as an MCP server.
func ServeMCP(opts ServeOptions) error {
	return withApp(opts.ConfigPath, opts.Debug, func(ctx context.Context, app *App) error {
		transport := opts.Transport
		if transport == "" {
			transport = app.Config.MCP.Transport
		}
		addr := opts.Addr
		if addr == "" {
			addr = app.Config.MCP.Addr
		}

		s := mcpadapter.NewServer(app.Orchestrator,
			mcpadapter.WithSessions(app.Sessions),
			mcpadapter.WithLogger(app.Logger),
		)
		switch transport {
		case "stdio":
			return s.ServeStdio()
		case "sse":
			return s.ServeSSE(ctx, addr, baseURL(addr))
		default:
			return &UsageError{Err: fmt.Errorf("unknown mcp transport: %s", transport)}
		}
	})
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

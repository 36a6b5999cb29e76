package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/conductor"
	"github.com/aretw0/conductor/internal/adapters/file"
	loamadapter "github.com/aretw0/conductor/pkg/adapters/loam"
	"github.com/aretw0/conductor/pkg/adapters/memory"
	natsadapter "github.com/aretw0/conductor/pkg/adapters/nats"
	"github.com/aretw0/conductor/pkg/adapters/openai"
	"github.com/aretw0/conductor/pkg/adapters/process"
	redisadapter "github.com/aretw0/conductor/pkg/adapters/redis"
	"github.com/aretw0/conductor/pkg/adapters/scripted"
	"github.com/aretw0/conductor/pkg/adapters/sqlite"
	"github.com/aretw0/conductor/pkg/config"
	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/observability"
	"github.com/aretw0/conductor/pkg/persistence/middleware"
	"github.com/aretw0/conductor/pkg/plugins"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/aretw0/conductor/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// App is a fully wired orchestrator with its supporting services.
type App struct {
	Config       *config.Config
	Orchestrator *conductor.Orchestrator
	Sessions     *session.Manager
	Metrics      *observability.Metrics
	Prompts      *loamadapter.Library
	Logger       *slog.Logger

	closers []func(context.Context) error
}

// RunOptions returns the per-goal options implied by the configuration.
func (a *App) RunOptions() []conductor.RunOption {
	return []conductor.RunOption{conductor.WithRetries(a.Config.Planner.Retries)}
}

// Close releases connections and flushes telemetry, in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Build wires an App from cfg. On error everything created so far is released.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
			app = nil
		}
	}()

	store, locker, err := app.createStore(ctx)
	if err != nil {
		return nil, err
	}
	sessOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(locker))
	}
	app.Sessions = session.NewManager(store, sessOpts...)

	reasoner, err := createReasoner(cfg.Reasoner, logger)
	if err != nil {
		return nil, err
	}

	hooks, opts, err := app.createTelemetry()
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry()
	if err := app.registerCapabilities(ctx, reg, reasoner); err != nil {
		return nil, err
	}

	opts = append(opts,
		conductor.WithRegistry(reg),
		conductor.WithReasoner(reasoner),
		conductor.WithLogger(logger),
		conductor.WithLifecycleHooks(hooks),
		conductor.WithGenerationTimeout(cfg.Planner.Timeout),
		conductor.WithMaxDepth(cfg.Planner.MaxDepth),
		conductor.WithMaxIterations(cfg.Executor.MaxIterations),
		conductor.WithStepTimeout(cfg.Executor.StepTimeout),
		conductor.WithParallelism(cfg.Executor.Parallelism),
		conductor.WithRenderOptions(renderOptions(cfg.History.Render)),
	)
	o, err := conductor.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing orchestrator: %w", err)
	}

	for _, n := range cfg.Capabilities.Nested {
		info := domain.CapabilityInfo{Name: n.Name, Description: n.Description}
		if err := reg.Register(conductor.NestedGoal(o, info)); err != nil {
			return nil, fmt.Errorf("nested capability %s: %w", n.Name, err)
		}
	}
	reg.Seal()

	app.Orchestrator = o
	logger.Debug("Orchestrator ready", "capabilities", reg.Len(), "history", cfg.History.Backend, "reasoner", cfg.Reasoner.Provider)
	return app, nil
}

func (a *App) createStore(ctx context.Context) (ports.HistoryStore, ports.DistributedLocker, error) {
	cfg := a.Config.History

	var (
		store  ports.HistoryStore
		locker ports.DistributedLocker
	)
	switch cfg.Backend {
	case "memory":
		store = memory.NewStore()
	case "file":
		store = file.New(cfg.Path)
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create history directory: %w", err)
			}
		}
		s, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(func(context.Context) error { return s.Close() })
		store = s
	case "redis":
		opts := []redisadapter.Option{redisadapter.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redisadapter.WithTTL(cfg.Redis.TTL))
		}
		s := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		a.onClose(func(context.Context) error { return s.Close() })
		if err := s.Client().Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		store = s
		locker = redisadapter.NewLocker(s.Client(), cfg.Redis.Prefix+"lock:")
	default:
		return nil, nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			return nil, nil, fmt.Errorf("history.redact: %w", err)
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte(cfg.EncryptionKey)})
		if err != nil {
			return nil, nil, fmt.Errorf("history.encryption_key: %w", err)
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), locker, nil
}

func createReasoner(cfg config.ReasonerConfig, logger *slog.Logger) (ports.ReasoningService, error) {
	switch cfg.Provider {
	case "scripted":
		if len(cfg.Responses) == 0 {
			return nil, errors.New("scripted reasoner needs at least one response")
		}
		return scripted.New(cfg.Responses...).Repeat(), nil
	case "openai":
		return openai.New(openai.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			Timeout:           cfg.Timeout,
		}, openai.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown reasoner provider: %s", cfg.Provider)
	}
}

// createTelemetry builds the lifecycle hooks and tracer options enabled by the configuration.
func (a *App) createTelemetry() (domain.LifecycleHooks, []conductor.Option, error) {
	cfg := a.Config
	all := []domain.LifecycleHooks{observability.LogHooks(a.Logger)}
	var opts []conductor.Option

	if cfg.Metrics.Enabled {
		m, err := observability.NewMetrics(prometheus.NewRegistry())
		if err != nil {
			return domain.LifecycleHooks{}, nil, err
		}
		a.Metrics = m
		all = append(all, m.Hooks())
	}

	if cfg.Events.NATSURL != "" {
		pub, err := natsadapter.NewPublisher(natsadapter.Config{URL: cfg.Events.NATSURL, Subject: cfg.Events.Subject})
		if err != nil {
			return domain.LifecycleHooks{}, nil, err
		}
		a.onClose(func(context.Context) error { return pub.Close() })
		all = append(all, observability.EventHooks(pub, a.Logger))
	}

	if cfg.Tracing.Enabled {
		var w io.Writer = os.Stderr
		if cfg.Tracing.File != "" {
			f, err := os.OpenFile(cfg.Tracing.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return domain.LifecycleHooks{}, nil, fmt.Errorf("open trace file: %w", err)
			}
			a.onClose(func(context.Context) error { return f.Close() })
			w = f
		}
		tp, err := observability.NewTracerProvider("conductor", w)
		if err != nil {
			return domain.LifecycleHooks{}, nil, err
		}
		a.onClose(func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		})
		opts = append(opts, conductor.WithTracer(tp.Tracer()))
	}

	return observability.ComposeHooks(all...), opts, nil
}

func (a *App) registerCapabilities(ctx context.Context, reg *registry.Registry, reasoner ports.ReasoningService) error {
	cfg := a.Config.Capabilities

	for _, name := range cfg.Builtins {
		var caps []registry.Capability
		switch name {
		case "math":
			caps = plugins.Math()
		case "text":
			caps = plugins.Text()
		case "time":
			caps = plugins.Time(time.Now)
		default:
			return fmt.Errorf("unknown builtin plugin: %s", name)
		}
		if err := registerAll(reg, registry.Plugin(name, caps...)); err != nil {
			return err
		}
	}

	if cfg.Tools != "" {
		tools, err := process.LoadTools(cfg.Tools)
		if err != nil {
			return err
		}
		runner := process.NewRunner(
			process.WithBaseDir(filepath.Dir(cfg.Tools)),
			process.WithLogger(a.Logger),
		)
		if err := registerAll(reg, runner.Capabilities(tools)); err != nil {
			return err
		}
		a.Logger.Debug("Loaded process tools", "path", cfg.Tools, "count", len(tools))
	}

	if cfg.Prompts != "" {
		lib, err := loamadapter.Open(cfg.Prompts, loamadapter.WithLogger(a.Logger))
		if err != nil {
			return err
		}
		caps, err := lib.Capabilities(ctx, reasoner)
		if err != nil {
			return fmt.Errorf("prompts in %s: %w", cfg.Prompts, err)
		}
		if err := registerAll(reg, caps); err != nil {
			return err
		}
		a.Prompts = lib
	}
	return nil
}

func registerAll(reg *registry.Registry, caps []registry.Capability) error {
	for _, c := range caps {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func renderOptions(cfg config.RenderConfig) session.RenderOptions {
	opts := session.RenderOptions{
		MaxTurns:  cfg.MaxTurns,
		MaxChars:  cfg.MaxChars,
		MaxTokens: cfg.MaxTokens,
	}
	if cfg.Order == "most_recent_first" {
		opts.Order = session.MostRecentFirst
	}
	return opts
}

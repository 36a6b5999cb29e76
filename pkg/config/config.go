// Package config loads Conductor settings from a YAML file, the environment and defaults.
//
// Keys map to environment variables with the CONDUCTOR_ prefix, dots replaced by
// underscores: executor.step_timeout is CONDUCTOR_EXECUTOR_STEP_TIMEOUT.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PlannerConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  int           `mapstructure:"retries"`
	MaxDepth int           `mapstructure:"max_depth"`
}

type ExecutorConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	StepTimeout   time.Duration `mapstructure:"step_timeout"`
	Parallelism   int           `mapstructure:"parallelism"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RenderConfig struct {
	MaxTurns  int    `mapstructure:"max_turns"`
	MaxChars  int    `mapstructure:"max_chars"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Order     string `mapstructure:"order"`
}

type HistoryConfig struct {
	Backend       string       `mapstructure:"backend"`
	Path          string       `mapstructure:"path"`
	DSN           string       `mapstructure:"dsn"`
	Redis         RedisConfig  `mapstructure:"redis"`
	Render        RenderConfig `mapstructure:"render"`
	Redact        []string     `mapstructure:"redact"`
	EncryptionKey string       `mapstructure:"encryption_key"`
}

type ReasonerConfig struct {
	Provider          string        `mapstructure:"provider"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Responses         []string      `mapstructure:"responses"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type MCPConfig struct {
	Transport string `mapstructure:"transport"`
	Addr      string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`
}

type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type NestedConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

type CapabilitiesConfig struct {
	Builtins []string       `mapstructure:"builtins"`
	Tools    string         `mapstructure:"tools"`
	Prompts  string         `mapstructure:"prompts"`
	Nested   []NestedConfig `mapstructure:"nested"`
}

// Config is the full application configuration.
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Planner      PlannerConfig      `mapstructure:"planner"`
	Executor     ExecutorConfig     `mapstructure:"executor"`
	History      HistoryConfig      `mapstructure:"history"`
	Reasoner     ReasonerConfig     `mapstructure:"reasoner"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	MCP          MCPConfig          `mapstructure:"mcp"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Events       EventsConfig       `mapstructure:"events"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Planner:  PlannerConfig{Timeout: 60 * time.Second, Retries: 0, MaxDepth: 4},
		Executor: ExecutorConfig{MaxIterations: 100, StepTimeout: 30 * time.Second, Parallelism: 1},
		History: HistoryConfig{
			Backend: "memory",
			Path:    ".conductor/sessions",
			DSN:     ".conductor/history.db",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "conductor:session:"},
			Render:  RenderConfig{MaxTurns: 20, Order: "chronological"},
		},
		Reasoner: ReasonerConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Burst:    1,
			Timeout:  90 * time.Second,
		},
		HTTP:         HTTPConfig{Addr: ":8080"},
		MCP:          MCPConfig{Transport: "stdio", Addr: ":8081"},
		Metrics:      MetricsConfig{Addr: ":2112"},
		Events:       EventsConfig{Subject: "conductor.events"},
		Capabilities: CapabilitiesConfig{Builtins: []string{"math", "text", "time"}},
	}
}

// Load reads configuration. An empty path searches conductor.yaml in the
// working directory and $HOME/.conductor; a missing file is not an error then.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := Default()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("conductor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.conductor")
	}

	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	defaults := map[string]any{
		"log.level":                    cfg.Log.Level,
		"log.format":                   cfg.Log.Format,
		"planner.timeout":              cfg.Planner.Timeout,
		"planner.retries":              cfg.Planner.Retries,
		"planner.max_depth":            cfg.Planner.MaxDepth,
		"executor.max_iterations":      cfg.Executor.MaxIterations,
		"executor.step_timeout":        cfg.Executor.StepTimeout,
		"executor.parallelism":         cfg.Executor.Parallelism,
		"history.backend":              cfg.History.Backend,
		"history.path":                 cfg.History.Path,
		"history.dsn":                  cfg.History.DSN,
		"history.redis.addr":           cfg.History.Redis.Addr,
		"history.redis.password":       cfg.History.Redis.Password,
		"history.redis.db":             cfg.History.Redis.DB,
		"history.redis.prefix":         cfg.History.Redis.Prefix,
		"history.redis.ttl":            cfg.History.Redis.TTL,
		"history.render.max_turns":     cfg.History.Render.MaxTurns,
		"history.render.max_chars":     cfg.History.Render.MaxChars,
		"history.render.max_tokens":    cfg.History.Render.MaxTokens,
		"history.render.order":         cfg.History.Render.Order,
		"history.redact":               cfg.History.Redact,
		"history.encryption_key":       cfg.History.EncryptionKey,
		"reasoner.provider":            cfg.Reasoner.Provider,
		"reasoner.base_url":            cfg.Reasoner.BaseURL,
		"reasoner.model":               cfg.Reasoner.Model,
		"reasoner.api_key":             cfg.Reasoner.APIKey,
		"reasoner.requests_per_second": cfg.Reasoner.RequestsPerSecond,
		"reasoner.burst":               cfg.Reasoner.Burst,
		"reasoner.timeout":             cfg.Reasoner.Timeout,
		"http.addr":                    cfg.HTTP.Addr,
		"mcp.transport":                cfg.MCP.Transport,
		"mcp.addr":                     cfg.MCP.Addr,
		"metrics.enabled":              cfg.Metrics.Enabled,
		"metrics.addr":                 cfg.Metrics.Addr,
		"tracing.enabled":              cfg.Tracing.Enabled,
		"tracing.file":                 cfg.Tracing.File,
		"events.nats_url":              cfg.Events.NATSURL,
		"events.subject":               cfg.Events.Subject,
		"capabilities.builtins":        cfg.Capabilities.Builtins,
		"capabilities.tools":           cfg.Capabilities.Tools,
		"capabilities.prompts":         cfg.Capabilities.Prompts,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level), "invalid log level: %s", c.Log.Level)
	check(slices.Contains([]string{"text", "json"}, c.Log.Format), "invalid log format: %s", c.Log.Format)
	check(c.Planner.Timeout > 0, "planner.timeout must be positive")
	check(c.Planner.Retries >= 0, "planner.retries cannot be negative")
	check(c.Planner.MaxDepth > 0, "planner.max_depth must be positive")
	check(c.Executor.MaxIterations > 0, "executor.max_iterations must be positive")
	check(c.Executor.StepTimeout > 0, "executor.step_timeout must be positive")
	check(c.Executor.Parallelism > 0, "executor.parallelism must be positive")
	check(slices.Contains([]string{"memory", "file", "redis", "sqlite"}, c.History.Backend), "invalid history backend: %s", c.History.Backend)
	check(slices.Contains([]string{"chronological", "most_recent_first"}, c.History.Render.Order), "invalid history.render.order: %s", c.History.Render.Order)
	check(c.History.Render.MaxTurns >= 0 && c.History.Render.MaxChars >= 0 && c.History.Render.MaxTokens >= 0, "history.render limits cannot be negative")
	check(c.History.EncryptionKey == "" || len(c.History.EncryptionKey) == 32, "history.encryption_key must be 32 bytes")
	check(slices.Contains([]string{"openai", "scripted"}, c.Reasoner.Provider), "invalid reasoner provider: %s", c.Reasoner.Provider)
	check(slices.Contains([]string{"stdio", "sse"}, c.MCP.Transport), "invalid mcp transport: %s", c.MCP.Transport)
	for _, b := range c.Capabilities.Builtins {
		check(slices.Contains([]string{"math", "text", "time"}, b), "unknown builtin plugin: %s", b)
	}
	for _, n := range c.Capabilities.Nested {
		check(n.Name != "", "nested capabilities need a name")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

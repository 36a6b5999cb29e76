package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/conductor/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	def := config.Default()
	assert.Equal(t, def.Log, cfg.Log)
	assert.Equal(t, def.Planner, cfg.Planner)
	assert.Equal(t, def.Executor, cfg.Executor)
	assert.Equal(t, def.History.Render, cfg.History.Render)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, def.Capabilities.Builtins, cfg.Capabilities.Builtins)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
executor:
  max_iterations: 10
  step_timeout: 5s
history:
  backend: redis
  redis:
    ttl: 1h
capabilities:
  builtins: [math]
  nested:
    - name: solver
      description: Solves math problems
`), 0o644))
	t.Setenv("CONDUCTOR_EXECUTOR_PARALLELISM", "4")
	t.Setenv("CONDUCTOR_REASONER_API_KEY", "sk-test")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Executor.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.Executor.StepTimeout)
	assert.Equal(t, 4, cfg.Executor.Parallelism)
	assert.Equal(t, "redis", cfg.History.Backend)
	assert.Equal(t, time.Hour, cfg.History.Redis.TTL)
	assert.Equal(t, "conductor:session:", cfg.History.Redis.Prefix)
	assert.Equal(t, "sk-test", cfg.Reasoner.APIKey)
	assert.Equal(t, []string{"math"}, cfg.Capabilities.Builtins)
	require.Len(t, cfg.Capabilities.Nested, 1)
	assert.Equal(t, "solver", cfg.Capabilities.Nested[0].Name)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"log level", func(c *config.Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"iterations", func(c *config.Config) { c.Executor.MaxIterations = 0 }, "max_iterations"},
		{"backend", func(c *config.Config) { c.History.Backend = "tape" }, "invalid history backend"},
		{"key size", func(c *config.Config) { c.History.EncryptionKey = "short" }, "32 bytes"},
		{"builtin", func(c *config.Config) { c.Capabilities.Builtins = []string{"weather"} }, "unknown builtin"},
		{"provider", func(c *config.Config) { c.Reasoner.Provider = "oracle" }, "invalid reasoner provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
	assert.NoError(t, config.Default().Validate())
}

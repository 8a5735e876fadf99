package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-plancache/logger"
	"github.com/agentuity/go-plancache/plancache"
	"github.com/agentuity/go-plancache/plan"
	"github.com/agentuity/go-plancache/planstore"
	"github.com/agentuity/go-plancache/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
max_cache_size: 500
ttl: 2h
shortcut_limit: 2000
store:
  backend: memory
  prefix: plans
  expires: 1d
  breaker_failures: 3
  breaker_cooldown: 10s
events:
  enabled: true
  url: redis://localhost:6379/0
  channel: schema
log:
  level: info
  format: json
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, 500, c.MaxCacheSize)
	assert.Equal(t, 2*time.Hour, time.Duration(c.TTL))
	assert.Equal(t, 2000, c.ShortcutLimit)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, 24*time.Hour, time.Duration(c.Store.Expires))
	assert.Equal(t, 3, c.Store.BreakerFailures)
	assert.Equal(t, 10*time.Second, time.Duration(c.Store.BreakerCooldown))
	assert.True(t, c.Events.Enabled)
	assert.Equal(t, "schema", c.Events.Channel)
	assert.Equal(t, "json", c.Log.Format)
	assert.NoError(t, c.Validate())
}

func TestParseDefaultsAndErrors(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.NoError(t, c.Validate())

	c, err = Parse([]byte("ttl: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, Duration(0), c.TTL)
	assert.Equal(t, plancache.DefaultMaxSize, c.MaxCacheSize)

	_, err = Parse([]byte("ttl: soon\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("ttl: [1h]\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("max_cache_sise: 10\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero size", func(c *Config) { c.MaxCacheSize = 0 }},
		{"negative shortcut limit", func(c *Config) { c.ShortcutLimit = -1 }},
		{"negative ttl", func(c *Config) { c.TTL = Duration(-time.Second) }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "memcached" }},
		{"redis without url", func(c *Config) { c.Store.Backend = "redis" }},
		{"events without url", func(c *Config) { c.Events.Enabled = true }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative breaker", func(c *Config) { c.Store.BreakerFailures = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvMaxCacheSize: "42",
		EnvTTL:          "1w",
		EnvStoreURL:     "redis://cache:6379/1",
		EnvEventsURL:    "redis://events:6379/0",
		EnvLogLevel:     "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	c := Default()
	require.NoError(t, c.ApplyEnv(lookup))
	assert.Equal(t, 42, c.MaxCacheSize)
	assert.Equal(t, 7*24*time.Hour, time.Duration(c.TTL))
	assert.Equal(t, "redis", c.Store.Backend)
	assert.Equal(t, "redis://cache:6379/1", c.Store.URL)
	assert.True(t, c.Events.Enabled)
	assert.Equal(t, "debug", c.Log.Level)
	assert.NoError(t, c.Validate())

	env[EnvMaxCacheSize] = "lots"
	assert.ErrorIs(t, Default().ApplyEnv(lookup), ErrInvalidConfig)
	env[EnvMaxCacheSize] = "1"
	env[EnvTTL] = "forever"
	assert.ErrorIs(t, Default().ApplyEnv(lookup), ErrInvalidConfig)
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plancache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	t.Setenv(EnvMaxCacheSize, "64")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, c.MaxCacheSize)

	out := filepath.Join(dir, "saved.yaml")
	require.NoError(t, c.Save(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ttl: 2h")
	assert.Contains(t, string(data), "expires: 1d")

	reloaded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, reloaded)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	t.Setenv(EnvMaxCacheSize, "0")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuildManager(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	store, err := c.OpenStore(context.Background(), logger.NewTestLogger())
	require.NoError(t, err)
	require.IsType(t, &planstore.Guarded{}, store)
	assert.Equal(t, resilience.StateClosed, store.(*planstore.Guarded).Breaker().State())

	m, err := plancache.New(plan.NewMockGenerator(0), c.ManagerOptions(c.Logger(), store)...)
	require.NoError(t, err)
	defer m.Close()

	ep, err := m.GetExecutionPlan(context.Background(), "SELECT * FROM orders WHERE id = 1")
	require.NoError(t, err)
	assert.Equal(t, plancache.SourceGenerated, ep.Source)
	assert.Equal(t, 1, m.CacheSize())

	none := Default()
	store, err = none.OpenStore(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestDurationString(t *testing.T) {
	assert.Equal(t, "1h30m", Duration(90*time.Minute).String())
	assert.Equal(t, "2d", Duration(48*time.Hour).String())
}

func TestParseCommentsOnly(t *testing.T) {
	c, err := Parse([]byte("# nothing configured\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

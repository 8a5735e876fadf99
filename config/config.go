// Package config loads plan cache settings from a YAML file and PLANCACHE_*
// environment variables.
package config

import (
	"bytes"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentuity/go-plancache/eventing"
	"github.com/agentuity/go-plancache/logger"
	"github.com/agentuity/go-plancache/plancache"
	"github.com/agentuity/go-plancache/planstore"
	"github.com/agentuity/go-plancache/resilience"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

const (
	EnvMaxCacheSize = "PLANCACHE_MAX_CACHE_SIZE"
	EnvTTL          = "PLANCACHE_TTL"
	EnvStoreURL     = "PLANCACHE_STORE_URL"
	EnvEventsURL    = "PLANCACHE_EVENTS_URL"
	EnvLogLevel     = logger.EnvLogLevel
)

// Store selects the optional second-level plan store.
type Store struct {
	Backend string   `yaml:"backend,omitempty" json:"backend,omitempty"`
	URL     string   `yaml:"url,omitempty" json:"url,omitempty"`
	Prefix  string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Expires Duration `yaml:"expires,omitempty" json:"expires,omitempty"`

	// BreakerFailures enables a circuit breaker in front of the store that
	// opens after this many consecutive failures.
	BreakerFailures int      `yaml:"breaker_failures,omitempty" json:"breaker_failures,omitempty"`
	BreakerCooldown Duration `yaml:"breaker_cooldown,omitempty" json:"breaker_cooldown,omitempty"`
}

// Events configures schema change notifications.
type Events struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Channel string `yaml:"channel,omitempty" json:"channel,omitempty"`
}

type Log struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Config is the file format.
type Config struct {
	MaxCacheSize  int      `yaml:"max_cache_size" json:"max_cache_size"`
	TTL           Duration `yaml:"ttl" json:"ttl"`
	ShortcutLimit int      `yaml:"shortcut_limit,omitempty" json:"shortcut_limit,omitempty"`
	Store         Store    `yaml:"store,omitempty" json:"store,omitempty"`
	Events        Events   `yaml:"events,omitempty" json:"events,omitempty"`
	Log           Log      `yaml:"log,omitempty" json:"log,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MaxCacheSize: plancache.DefaultMaxSize,
		TTL:          Duration(plancache.DefaultTTL),
		Events:       Events{Channel: eventing.DefaultSchemaChannel},
		Log:          Log{Level: "warn", Format: "console"},
	}
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "config: decode yaml")
	}
	return c, nil
}

// Load reads the file at path, applies environment overrides and validates
// the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with the environment read through lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		if c, err = Parse(data); err != nil {
			return nil, errors.Wrapf(err, "config: %s", path)
		}
	}
	if err := c.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from the PLANCACHE_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMaxCacheSize); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvMaxCacheSize, v)
		}
		c.MaxCacheSize = n
	}
	if v, ok := lookup(EnvTTL); ok && v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvTTL, v)
		}
		c.TTL = Duration(d)
	}
	if v, ok := lookup(EnvStoreURL); ok && v != "" {
		c.Store.URL = v
		if c.Store.Backend == "" && strings.HasPrefix(v, "redis") {
			c.Store.Backend = "redis"
		}
	}
	if v, ok := lookup(EnvEventsURL); ok && v != "" {
		c.Events.URL = v
		c.Events.Enabled = true
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

var backends = map[string]bool{"": true, "none": true, "memory": true, "redis": true, "sqlite": true, "badger": true}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.MaxCacheSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_cache_size must be positive, got %d", c.MaxCacheSize)
	}
	if c.ShortcutLimit < 0 {
		return errors.Wrapf(ErrInvalidConfig, "shortcut_limit must not be negative, got %d", c.ShortcutLimit)
	}
	if c.TTL < 0 {
		return errors.Wrapf(ErrInvalidConfig, "ttl must not be negative")
	}
	if !backends[strings.ToLower(c.Store.Backend)] {
		return errors.Wrapf(ErrInvalidConfig, "unknown store backend %q", c.Store.Backend)
	}
	if strings.EqualFold(c.Store.Backend, "redis") && c.Store.URL == "" {
		return errors.Wrapf(ErrInvalidConfig, "store.url is required for the redis backend")
	}
	if c.Store.BreakerFailures < 0 || c.Store.BreakerCooldown < 0 {
		return errors.Wrapf(ErrInvalidConfig, "store breaker settings must not be negative")
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return errors.Wrapf(ErrInvalidConfig, "events.url is required when events are enabled")
	}
	if c.Log.Level != "" {
		if _, ok := logger.ParseLevel(c.Log.Level); !ok {
			return errors.Wrapf(ErrInvalidConfig, "unknown log level %q", c.Log.Level)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown log format %q", c.Log.Format)
	}
	return nil
}

// Logger builds the logger described by the log section.
func (c *Config) Logger() logger.Logger {
	level, ok := logger.ParseLevel(c.Log.Level)
	if !ok {
		level = logger.LevelWarn
	}
	return logger.New(c.Log.Format, level)
}

// OpenStore opens the configured second-level store. It returns nil when no
// backend is configured. Breaker transitions are logged to log.
func (c *Config) OpenStore(ctx context.Context, log logger.Logger) (planstore.Store, error) {
	var opts []planstore.Option
	if c.Store.Prefix != "" {
		opts = append(opts, planstore.WithPrefix(c.Store.Prefix))
	}
	if c.Store.Expires > 0 {
		opts = append(opts, planstore.WithExpires(time.Duration(c.Store.Expires)))
	}
	store, err := planstore.Open(ctx, c.Store.Backend, c.Store.URL, opts...)
	if err != nil || store == nil || c.Store.BreakerFailures <= 0 {
		return store, err
	}
	bc := resilience.DefaultConfig()
	bc.MaxFailures = c.Store.BreakerFailures
	if c.Store.BreakerCooldown > 0 {
		bc.Cooldown = time.Duration(c.Store.BreakerCooldown)
	}
	if log != nil {
		backend := c.Store.Backend
		bc.OnStateChange = func(from, to resilience.State) {
			log.Warn("%s store circuit %s -> %s", backend, from, to)
		}
	}
	return planstore.NewGuarded(store, resilience.New(bc)), nil
}

// ManagerOptions converts the cache settings into plancache options. The
// store, when given, is handed to the manager.
func (c *Config) ManagerOptions(log logger.Logger, store planstore.Store) []plancache.Option {
	opts := []plancache.Option{
		plancache.WithMaxSize(c.MaxCacheSize),
		plancache.WithTTL(time.Duration(c.TTL)),
	}
	if c.ShortcutLimit > 0 {
		opts = append(opts, plancache.WithShortcutLimit(c.ShortcutLimit))
	}
	if log != nil {
		opts = append(opts, plancache.WithLogger(log))
	}
	if store != nil {
		opts = append(opts, plancache.WithStore(store))
	}
	return opts
}

// Save writes c as YAML to path.
func (c *Config) Save(path string) error {
	of, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "config: create %s", path)
	}
	defer of.Close()
	of.WriteString("# plancache configuration\n")
	of.WriteString("# durations accept units from ms to w, for example 90s, 2h or 1d\n\n")
	enc := yaml.NewEncoder(of)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "config: encode yaml")
	}
	return enc.Close()
}

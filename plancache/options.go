package plancache

import (
	"time"

	"github.com/agentuity/go-plancache/logger"
	"github.com/agentuity/go-plancache/planstore"
	"github.com/agentuity/go-plancache/schema"
)

const (
	DefaultMaxSize     = 1000
	DefaultTTL         = time.Hour
	DefaultLockStripes = 256
	// shortcut entries allowed per cache entry when no limit is configured
	defaultShortcutRatio = 10
)

type config struct {
	maxSize       int
	ttl           time.Duration
	shortcutLimit int
	lockStripes   int
	logger        logger.Logger
	now           func() time.Time
	store         planstore.Store
	tracker       *schema.Tracker
}

// Option configures a Manager.
type Option func(*config)

func defaultConfig() config {
	return config{
		maxSize:     DefaultMaxSize,
		ttl:         DefaultTTL,
		lockStripes: DefaultLockStripes,
		now:         time.Now,
	}
}

// WithMaxSize sets the maximum number of cached plans. Defaults to
// DefaultMaxSize; values <= 0 make New fail.
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// WithTTL sets how long a plan stays valid after generation. A TTL <= 0
// disables age based expiry.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// WithShortcutLimit bounds the raw SQL shortcut index. Defaults to ten times
// the max size.
func WithShortcutLimit(n int) Option {
	return func(c *config) { c.shortcutLimit = n }
}

// WithLockStripes sets the number of generation locks keys are hashed onto.
func WithLockStripes(n int) Option {
	return func(c *config) { c.lockStripes = n }
}

// WithLogger sets the logger. Defaults to a console logger at warn level.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithStore adds a second-level plan store consulted on misses. The Manager
// takes ownership and closes it on Close.
func WithStore(s planstore.Store) Option {
	return func(c *config) { c.store = s }
}

// WithTracker supplies the schema tracker instead of creating one.
func WithTracker(t *schema.Tracker) Option {
	return func(c *config) { c.tracker = t }
}

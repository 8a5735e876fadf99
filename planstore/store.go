package planstore

import (
	"context"
	"strings"
	"time"

	"github.com/agentuity/go-plancache/plan"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("planstore: unknown backend")

var errNilPlan = errors.New("planstore: nil plan")

// Store persists plans by cache key. Implementations must be safe for
// concurrent use. A missing or expired key is reported as found=false with
// a nil error.
type Store interface {
	// Load returns the plan stored under key.
	Load(ctx context.Context, key string) (*plan.Plan, bool, error)
	// Save stores p under key using the configured expiry.
	Save(ctx context.Context, key string, p *plan.Plan) error
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Close releases the store's resources.
	Close() error
}

// DefaultExpires is the lifetime of a stored plan when WithExpires is not given.
const DefaultExpires = time.Hour

// DefaultQueryTimeout bounds each operation against an I/O-backed store.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	expires      time.Duration
	queryTimeout time.Duration
	expiryCheck  time.Duration
	prefix       string
}

// Option configures a Store implementation.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{
		expires:      DefaultExpires,
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.expires <= 0 {
		cfg.expires = DefaultExpires
	}
	if cfg.queryTimeout <= 0 {
		cfg.queryTimeout = DefaultQueryTimeout
	}
	if cfg.expiryCheck <= 0 {
		cfg.expiryCheck = time.Minute
	}
	return cfg
}

// WithExpires sets how long a saved plan remains loadable.
func WithExpires(d time.Duration) Option {
	return func(c *config) { c.expires = d }
}

// WithQueryTimeout sets the per-operation timeout for the Redis and SQLite
// backends.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval of the background sweep in the Memory
// and SQLite backends.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix namespaces keys. Applies to the Redis and Badger backends.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

func (c config) prefixKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func encodePlan(p *plan.Plan) ([]byte, error) {
	if p == nil {
		return nil, errNilPlan
	}
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "planstore: encode plan")
	}
	return data, nil
}

func decodePlan(data []byte) (*plan.Plan, error) {
	var p plan.Plan
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "planstore: decode plan")
	}
	return &p, nil
}

// Open builds a Store from a backend name and a location:
//
//	memory  location ignored
//	redis   redis:// URL; the client is owned by the store
//	sqlite  database path, "" or ":memory:" for an in-memory database
//	badger  data directory, "" for an in-memory database
//
// An empty backend or "none" returns a nil Store and no error.
func Open(ctx context.Context, backend, location string, opts ...Option) (Store, error) {
	switch strings.ToLower(backend) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(ctx, opts...), nil
	case "redis":
		ropts, err := redis.ParseURL(location)
		if err != nil {
			return nil, errors.Wrapf(err, "planstore: parse redis url")
		}
		s := NewRedis(redis.NewClient(ropts), opts...)
		s.ownsClient = true
		return s, nil
	case "sqlite":
		s, err := NewSQLite(ctx, location, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := NewBadger(location, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
}

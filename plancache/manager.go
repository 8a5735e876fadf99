package plancache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-plancache/logger"
	"github.com/agentuity/go-plancache/normalize"
	"github.com/agentuity/go-plancache/plan"
	"github.com/agentuity/go-plancache/planstore"
	"github.com/agentuity/go-plancache/schema"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Source tells where the plan of an ExecutionPlan came from.
type Source string

const (
	// SourceShortcut is an exact repeat of earlier SQL text; no parsing was done.
	SourceShortcut Source = "shortcut"
	// SourceCache is a hit on the normalized pattern.
	SourceCache Source = "cache"
	// SourceStore is a local miss served by the second-level store.
	SourceStore Source = "store"
	// SourceGenerated is a miss served by the Generator.
	SourceGenerated Source = "generated"
)

// ExecutionPlan is a cached plan bound to the parameters of one request.
// Plan is shared between requests and must not be modified.
type ExecutionPlan struct {
	Plan          *plan.Plan
	Parameters    []interface{}
	Metadata      []normalize.ParameterMetadata
	Pattern       string
	Key           string
	SchemaVersion string
	Source        Source
}

// Manager is a concurrent plan cache. It is safe for use by multiple
// goroutines.
type Manager struct {
	gen           plan.Generator
	tracker       *schema.Tracker
	store         planstore.Store
	logger        logger.Logger
	now           func() time.Time
	maxSize       int
	ttl           time.Duration
	shortcutLimit int64

	plans         sync.Map // cache key -> *cachedPlan
	size          atomic.Int64
	shortcuts     sync.Map // raw sql -> *shortcut
	shortcutCount atomic.Int64
	locks         *stripedLocks

	// storeMu serializes every structural change to plans: store with
	// eviction, invalidation and clear. Lookups do not take it.
	storeMu sync.Mutex

	stats  counters
	closed atomic.Bool
}

// New returns a Manager generating plans with gen.
func New(gen plan.Generator, opts ...Option) (*Manager, error) {
	if gen == nil {
		return nil, ErrNilGenerator
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidMaxSize, "got %d", cfg.maxSize)
	}
	if cfg.shortcutLimit <= 0 {
		cfg.shortcutLimit = cfg.maxSize * defaultShortcutRatio
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger(logger.LevelWarn)
	}
	if cfg.tracker == nil {
		cfg.tracker = schema.NewTracker()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Manager{
		gen:           gen,
		tracker:       cfg.tracker,
		store:         cfg.store,
		logger:        cfg.logger.WithPrefix("[plancache]"),
		now:           cfg.now,
		maxSize:       cfg.maxSize,
		ttl:           cfg.ttl,
		shortcutLimit: int64(cfg.shortcutLimit),
		locks:         newStripedLocks(cfg.lockStripes),
	}, nil
}

// GetExecutionPlan returns the plan for sql bound to its literals.
//
// Parse failures are returned as *sqlparse.SyntaxError and leave the cache
// and its statistics untouched. Generator failures are returned as
// *GenerationError.
func (m *Manager) GetExecutionPlan(ctx context.Context, sql string) (*ExecutionPlan, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	if v, ok := m.shortcuts.Load(sql); ok {
		sc := v.(*shortcut)
		if entry := m.lookup(sc.key); entry != nil {
			m.recordHit(entry)
			return &ExecutionPlan{
				Plan:          entry.plan,
				Parameters:    normalize.Bind(sc.metadata),
				Metadata:      sc.metadata,
				Pattern:       entry.pattern,
				Key:           sc.key,
				SchemaVersion: entry.schemaVersion(),
				Source:        SourceShortcut,
			}, nil
		}
		m.forgetShortcut(sql, sc)
	}

	q, err := normalize.Normalize(sql)
	if err != nil {
		return nil, err
	}
	key := CacheKey(q.Pattern)

	if entry := m.lookup(key); entry != nil {
		m.recordHit(entry)
		m.rememberShortcut(sql, key, q)
		return bind(entry, q, key, SourceCache), nil
	}

	ep, err := m.generate(ctx, key, q)
	if err != nil {
		return nil, err
	}
	m.rememberShortcut(sql, key, q)
	return ep, nil
}

// lookup returns the entry for key when it is present and valid.
func (m *Manager) lookup(key string) *cachedPlan {
	v, ok := m.plans.Load(key)
	if !ok {
		return nil
	}
	entry := v.(*cachedPlan)
	if !m.valid(entry) {
		return nil
	}
	return entry
}

func (m *Manager) valid(entry *cachedPlan) bool {
	if m.ttl > 0 && m.now().Sub(entry.createdAt) > m.ttl {
		return false
	}
	return entry.schemaVersion() == m.tracker.CurrentVersion()
}

func (m *Manager) recordHit(entry *cachedPlan) {
	m.stats.hits.Add(1)
	entry.touch(m.now())
}

func bind(entry *cachedPlan, q *normalize.Query, key string, source Source) *ExecutionPlan {
	return &ExecutionPlan{
		Plan:          entry.plan,
		Parameters:    q.Parameters,
		Metadata:      q.Metadata,
		Pattern:       q.Pattern,
		Key:           key,
		SchemaVersion: entry.schemaVersion(),
		Source:        source,
	}
}

// generate runs the miss path under the key's generation lock.
func (m *Manager) generate(ctx context.Context, key string, q *normalize.Query) (*ExecutionPlan, error) {
	mu := m.locks.forKey(key)
	mu.Lock()
	defer mu.Unlock()

	// another caller may have stored the plan while we waited
	if entry := m.lookup(key); entry != nil {
		m.recordHit(entry)
		return bind(entry, q, key, SourceCache), nil
	}
	m.stats.misses.Add(1)

	// captured before generation so that a schema change racing with the
	// generator leaves the stored entry invalid
	version := m.tracker.CurrentVersion()

	p, source := m.loadFromStore(ctx, key)
	if p == nil {
		var err error
		if p, err = m.callGenerator(ctx, key, q.Pattern); err != nil {
			return nil, err
		}
		source = SourceGenerated
	}

	entry := newCachedPlan(p, q, version, m.now())
	m.storeEntry(key, entry)

	if source == SourceGenerated && m.store != nil {
		m.saveToStore(ctx, key, entry)
	}
	return bind(entry, q, key, source), nil
}

// current reports whether entry is still the cached plan for key at the
// current schema version.
func (m *Manager) current(key string, entry *cachedPlan) bool {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	v, ok := m.plans.Load(key)
	if !ok || v.(*cachedPlan) != entry {
		return false
	}
	return entry.schemaVersion() == m.tracker.CurrentVersion()
}

// saveToStore publishes a freshly generated plan. A plan that a schema change
// made stale while it was being generated is never published, and one that
// went stale while being saved is removed again.
func (m *Manager) saveToStore(ctx context.Context, key string, entry *cachedPlan) {
	if !m.current(key, entry) {
		m.logger.Debug("not saving stale plan %s to store", key)
		return
	}
	if err := m.store.Save(ctx, key, entry.plan); err != nil {
		m.logger.Warn("failed to save plan %s to store: %s", key, err)
		return
	}
	if !m.current(key, entry) {
		if err := m.store.Delete(ctx, key); err != nil {
			m.logger.Warn("failed to delete stale plan %s from store: %s", key, err)
		}
	}
}

func (m *Manager) loadFromStore(ctx context.Context, key string) (*plan.Plan, Source) {
	if m.store == nil {
		return nil, ""
	}
	p, found, err := m.store.Load(ctx, key)
	if err != nil {
		m.logger.Warn("failed to load plan %s from store: %s", key, err)
		return nil, ""
	}
	if !found || p == nil {
		return nil, ""
	}
	m.logger.Debug("loaded plan %s from store", key)
	return p, SourceStore
}

func (m *Manager) callGenerator(ctx context.Context, key, pattern string) (*plan.Plan, error) {
	ctx, span := tracer.Start(ctx, "GeneratePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plancache.key", key))

	started := time.Now()
	p, err := m.gen.Generate(ctx, pattern)
	if err == nil && p == nil {
		err = errors.New("generator returned no plan")
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, &GenerationError{Pattern: pattern, Key: key, Err: err}
	}
	span.SetStatus(codes.Ok, "plan generated")
	m.logger.Debug("generated plan %s in %s", key, time.Since(started))
	return p, nil
}

// storeEntry inserts entry, evicting the least recently used entry first
// when the cache is full.
func (m *Manager) storeEntry(key string, entry *cachedPlan) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	if _, exists := m.plans.Load(key); !exists && m.size.Load() >= int64(m.maxSize) {
		m.evictLRU()
	}
	if _, loaded := m.plans.Swap(key, entry); !loaded {
		m.size.Add(1)
	}
	m.tracker.RecordDependencies(key, entry.tables)
}

// evictLRU removes the entry with the oldest access time. storeMu must be held.
func (m *Manager) evictLRU() {
	var (
		oldestKey   string
		oldestEntry *cachedPlan
		oldestNanos int64
	)
	m.plans.Range(func(k, v interface{}) bool {
		e := v.(*cachedPlan)
		if at := e.lastAccess.Load(); oldestEntry == nil || at < oldestNanos {
			oldestKey, oldestEntry, oldestNanos = k.(string), e, at
		}
		return true
	})
	if oldestEntry == nil {
		return
	}
	if _, ok := m.plans.LoadAndDelete(oldestKey); ok {
		m.size.Add(-1)
		m.stats.evictions.Add(1)
		m.tracker.Forget(oldestKey, oldestEntry.tables)
		m.logger.Trace("evicted plan %s", oldestKey)
	}
}

// shortcut maps one raw statement text to its cache key together with the
// literals extracted from that text.
type shortcut struct {
	key      string
	metadata []normalize.ParameterMetadata
}

func (m *Manager) rememberShortcut(sql, key string, q *normalize.Query) {
	sc := &shortcut{key: key, metadata: q.Metadata}
	if v, ok := m.shortcuts.Load(sql); ok {
		if v.(*shortcut).key != key {
			m.shortcuts.Store(sql, sc)
		}
		return
	}
	// the limit is approximate under concurrent registration
	if m.shortcutCount.Load() >= m.shortcutLimit {
		return
	}
	if _, loaded := m.shortcuts.LoadOrStore(sql, sc); !loaded {
		m.shortcutCount.Add(1)
	}
}

func (m *Manager) forgetShortcut(sql string, sc *shortcut) {
	if m.shortcuts.CompareAndDelete(sql, sc) {
		m.shortcutCount.Add(-1)
	}
}

// OnSchemaChange removes every plan that depends on table and advances the
// schema version. Plans for other tables stay valid. When a store is
// configured the affected keys are deleted from it as well and a failure
// to do so is returned after the local invalidation has completed.
func (m *Manager) OnSchemaChange(ctx context.Context, table string) error {
	m.storeMu.Lock()
	affected := m.tracker.AffectedPlans(table)
	set := make(map[string]struct{}, len(affected))
	var removed int
	for _, key := range affected {
		set[key] = struct{}{}
		if v, ok := m.plans.LoadAndDelete(key); ok {
			m.size.Add(-1)
			m.stats.invalidations.Add(1)
			m.tracker.Forget(key, v.(*cachedPlan).tables)
			removed++
		}
	}
	m.tracker.ClearTable(table)
	if len(set) > 0 {
		m.shortcuts.Range(func(sql, v interface{}) bool {
			sc := v.(*shortcut)
			if _, ok := set[sc.key]; ok {
				m.forgetShortcut(sql.(string), sc)
			}
			return true
		})
	}

	previous := m.tracker.CurrentVersion()
	version := m.tracker.IncrementVersion()
	// plans valid before the change remain valid after it
	m.plans.Range(func(_, v interface{}) bool {
		e := v.(*cachedPlan)
		if e.schemaVersion() == previous {
			e.setSchemaVersion(version)
		}
		return true
	})
	m.storeMu.Unlock()

	m.logger.Info("schema change on %s invalidated %d plans, schema version %s", table, removed, version)

	if m.store != nil && len(affected) > 0 {
		if err := m.store.Delete(ctx, affected...); err != nil {
			m.logger.Warn("failed to delete %d plans from store: %s", len(affected), err)
			return errors.Wrapf(err, "plancache: delete plans for %s from store", table)
		}
	}
	return nil
}

// ClearCache drops every cached plan and shortcut. Hit and miss counters are
// reset; eviction and invalidation counters are kept. The second-level
// store is not cleared.
func (m *Manager) ClearCache() {
	m.storeMu.Lock()
	m.plans.Clear()
	m.size.Store(0)
	m.shortcuts.Clear()
	m.shortcutCount.Store(0)
	m.tracker.Reset()
	m.stats.resetRequests()
	m.storeMu.Unlock()
	m.logger.Info("cache cleared")
}

// Statistics returns a snapshot of the counters.
func (m *Manager) Statistics() Statistics {
	return m.stats.snapshot()
}

// CacheSize returns the number of cached plans, valid or not.
func (m *Manager) CacheSize() int {
	return int(m.size.Load())
}

// SchemaVersion returns the current schema version.
func (m *Manager) SchemaVersion() string {
	return m.tracker.CurrentVersion()
}

// Entries returns a description of every cached plan in no particular order.
func (m *Manager) Entries() []EntryInfo {
	var out []EntryInfo
	m.plans.Range(func(k, v interface{}) bool {
		out = append(out, v.(*cachedPlan).info(k.(string)))
		return true
	})
	return out
}

// Close marks the manager closed and closes the second-level store, if
// any. Subsequent GetExecutionPlan calls fail with ErrClosed.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

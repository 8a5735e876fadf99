package schema

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// InitialVersion is the version of a new Tracker.
const InitialVersion = "v1"

var ErrInvalidVersion = errors.New("schema: invalid version")

// Tracker holds the current schema version and a reverse index from table
// name to the cache keys whose plans depend on that table. Reading the
// version never takes a lock. Table names are matched case-insensitively.
type Tracker struct {
	version atomic.Pointer[string]
	mu      sync.Mutex
	deps    map[string]map[string]struct{}
}

// NewTracker returns a Tracker at InitialVersion with no dependencies.
func NewTracker() *Tracker {
	t := &Tracker{deps: make(map[string]map[string]struct{})}
	v := InitialVersion
	t.version.Store(&v)
	return t
}

// CurrentVersion returns the current version tag.
func (t *Tracker) CurrentVersion() string {
	return *t.version.Load()
}

// IncrementVersion advances the version by one and returns the new tag.
func (t *Tracker) IncrementVersion() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := ParseVersion(t.CurrentVersion())
	if err != nil {
		// only versions produced by this type are ever stored
		panic(err)
	}
	next := FormatVersion(n + 1)
	t.version.Store(&next)
	return next
}

// RecordDependencies registers key against every table in tables.
func (t *Tracker) RecordDependencies(key string, tables []string) {
	if len(tables) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, table := range tables {
		name := strings.ToLower(table)
		set, ok := t.deps[name]
		if !ok {
			set = make(map[string]struct{})
			t.deps[name] = set
		}
		set[key] = struct{}{}
	}
}

// AffectedPlans returns the keys that depend on table, or nil when the table
// is not tracked. The returned slice is a copy.
func (t *Tracker) AffectedPlans(table string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.deps[strings.ToLower(table)]
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

// Forget removes key from the dependency sets of tables.
func (t *Tracker) Forget(key string, tables []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, table := range tables {
		name := strings.ToLower(table)
		if set, ok := t.deps[name]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(t.deps, name)
			}
		}
	}
}

// ClearTable drops every dependency recorded for table.
func (t *Tracker) ClearTable(table string) {
	t.mu.Lock()
	delete(t.deps, strings.ToLower(table))
	t.mu.Unlock()
}

// Reset drops all dependencies. The version is left unchanged.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.deps = make(map[string]map[string]struct{})
	t.mu.Unlock()
}

// TrackedTables returns the number of tables with at least one dependency.
func (t *Tracker) TrackedTables() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deps)
}

// ParseVersion extracts N from a "v<N>" tag.
func ParseVersion(v string) (uint64, error) {
	if !strings.HasPrefix(v, "v") {
		return 0, errors.Wrapf(ErrInvalidVersion, "%q", v)
	}
	n, err := strconv.ParseUint(v[1:], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidVersion, "%q", v)
	}
	return n, nil
}

// FormatVersion returns the "v<N>" tag for n.
func FormatVersion(n uint64) string {
	return "v" + strconv.FormatUint(n, 10)
}

package plancache

import (
	"crypto/sha256"
	"encoding/base64"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-plancache/normalize"
	"github.com/agentuity/go-plancache/plan"
)

// CacheKey returns the cache key for a normalized pattern: the base64
// encoded SHA-256 digest of the pattern text.
func CacheKey(pattern string) string {
	sum := sha256.Sum256([]byte(pattern))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// cachedPlan is owned by the cache map. Only the access bookkeeping and the
// schema version change after creation, and both are atomic.
type cachedPlan struct {
	plan      *plan.Plan
	pattern   string
	tables    []string
	createdAt time.Time

	version    atomic.Pointer[string]
	lastAccess atomic.Int64
	hits       atomic.Int64
}

func newCachedPlan(p *plan.Plan, q *normalize.Query, version string, now time.Time) *cachedPlan {
	e := &cachedPlan{
		plan:      p,
		pattern:   q.Pattern,
		tables:    q.Tables,
		createdAt: now,
	}
	e.version.Store(&version)
	e.lastAccess.Store(now.UnixNano())
	return e
}

func (e *cachedPlan) schemaVersion() string {
	return *e.version.Load()
}

func (e *cachedPlan) setSchemaVersion(v string) {
	e.version.Store(&v)
}

func (e *cachedPlan) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
	e.hits.Add(1)
}

// EntryInfo describes a cached plan for inspection.
type EntryInfo struct {
	Key           string
	Pattern       string
	Tables        []string
	SchemaVersion string
	CreatedAt     time.Time
	LastAccess    time.Time
	Hits          int64
}

func (e *cachedPlan) info(key string) EntryInfo {
	return EntryInfo{
		Key:           key,
		Pattern:       e.pattern,
		Tables:        e.tables,
		SchemaVersion: e.schemaVersion(),
		CreatedAt:     e.createdAt,
		LastAccess:    time.Unix(0, e.lastAccess.Load()),
		Hits:          e.hits.Load(),
	}
}

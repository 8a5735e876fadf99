// Package planstore provides second-level storage for generated execution
// plans so that several plan cache instances can share work.
//
// A Store is consulted only when the in-process cache misses. Four backends
// are available:
//
//   - Memory: a map with a background expiry sweep, useful in tests and for
//     a single process that wants plans to outlive cache clears.
//   - Redis: plans are msgpack encoded into a hash per key with a TTL.
//   - SQLite: a single table keyed by cache key with an expires_at column.
//   - Badger: an embedded key/value store using native entry TTLs.
//
// NewComposite chains stores: Load returns the first hit, Save and Delete
// fan out to every store.
//
// Example:
//
//	store, err := planstore.Open(ctx, "redis", "redis://localhost:6379/0",
//		planstore.WithPrefix("plans"), planstore.WithExpires(2*time.Hour))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package planstore

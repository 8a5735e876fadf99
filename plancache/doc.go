// Package plancache caches generated execution plans by the normalized shape
// of the SQL that produced them.
//
// Queries that differ only in literal values normalize to the same pattern
// and therefore share one plan. On every request the Manager returns the
// shared plan together with the literals of that request.
//
// Lookups never take a lock. A miss acquires a per-key generation lock so
// that concurrent first requests for the same pattern call the Generator
// exactly once; the losers observe the winner's plan.
//
// Entries become invalid when they are older than the TTL or when a schema
// change touches a table the plan depends on. Invalidated entries are removed
// immediately; entries that merely aged out are overwritten by the next
// generation. When the cache is full the least recently used entry is evicted.
//
// Example:
//
//	mgr, err := plancache.New(plan.NewMockGenerator(0),
//		plancache.WithMaxSize(5000),
//		plancache.WithTTL(30*time.Minute),
//	)
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	ep, err := mgr.GetExecutionPlan(ctx, "SELECT * FROM orders WHERE id = 42")
//	if err != nil {
//		return err
//	}
//	execute(ep.Plan, ep.Parameters)
package plancache

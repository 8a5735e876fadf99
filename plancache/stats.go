package plancache

import "sync/atomic"

// Statistics is a snapshot of the cache counters.
type Statistics struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
	HitRatio      float64 `json:"hit_ratio"`
}

// Requests returns the number of classified lookups.
func (s Statistics) Requests() int64 {
	return s.Hits + s.Misses
}

type counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
}

func (c *counters) snapshot() Statistics {
	s := Statistics{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

// resetRequests zeroes hits and misses only; evictions and invalidations
// survive a full clear.
func (c *counters) resetRequests() {
	c.hits.Store(0)
	c.misses.Store(0)
}

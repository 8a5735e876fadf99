package plancache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// stripedLocks maps keys onto a fixed set of mutexes. Distinct keys may
// share a stripe; that only serializes their generation.
type stripedLocks struct {
	stripes []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	if n <= 0 {
		n = DefaultLockStripes
	}
	return &stripedLocks{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLocks) forKey(key string) *sync.Mutex {
	return &l.stripes[xxhash.Sum64String(key)%uint64(len(l.stripes))]
}

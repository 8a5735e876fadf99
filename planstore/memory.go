package planstore

import (
	"context"
	"sync"
	"time"

	"github.com/agentuity/go-plancache/plan"
)

type memoryEntry struct {
	plan    *plan.Plan
	expires time.Time
}

// Memory is an in-process Store.
type Memory struct {
	ctx       context.Context
	cancel    context.CancelFunc
	entries   map[string]memoryEntry
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	now       func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Memory store. The expiry sweep stops when parent is
// cancelled or Close is called.
func NewMemory(parent context.Context, opts ...Option) *Memory {
	ctx, cancel := context.WithCancel(parent)
	m := &Memory{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]memoryEntry),
		cfg:     applyOptions(opts),
		now:     time.Now,
	}
	m.waitGroup.Add(1)
	go m.run()
	return m
}

func (m *Memory) Load(_ context.Context, key string) (*plan.Plan, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expires.Before(m.now()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.plan.Clone(), true, nil
}

func (m *Memory) Save(_ context.Context, key string, p *plan.Plan) error {
	if p == nil {
		return errNilPlan
	}
	m.mutex.Lock()
	m.entries[key] = memoryEntry{plan: p.Clone(), expires: m.now().Add(m.cfg.expires)}
	m.mutex.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mutex.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mutex.Unlock()
	return nil
}

// Len returns the number of entries, expired or not.
func (m *Memory) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	m.once.Do(func() {
		m.cancel()
		m.waitGroup.Wait()
	})
	return nil
}

func (m *Memory) sweep() {
	now := m.now()
	m.mutex.Lock()
	for key, e := range m.entries {
		if e.expires.Before(now) {
			delete(m.entries, key)
		}
	}
	m.mutex.Unlock()
}

func (m *Memory) run() {
	defer m.waitGroup.Done()
	ticker := time.NewTicker(m.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

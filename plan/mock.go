package plan

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MockGenerator builds a fixed-shape plan document for any pattern. Latency
// simulates an expensive optimizer; the call is abandoned early if ctx is
// cancelled.
type MockGenerator struct {
	Latency time.Duration
	calls   atomic.Int64
}

var _ Generator = (*MockGenerator)(nil)

// NewMockGenerator returns a MockGenerator with the given simulated latency.
func NewMockGenerator(latency time.Duration) *MockGenerator {
	return &MockGenerator{Latency: latency}
}

func (g *MockGenerator) Generate(ctx context.Context, pattern string) (*Plan, error) {
	g.calls.Add(1)
	if g.Latency > 0 {
		timer := time.NewTimer(g.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	now := time.Now().UTC()
	return &Plan{
		ID:          uuid.New().String(),
		Pattern:     pattern,
		GeneratedAt: now,
		Document: map[string]interface{}{
			"query":         pattern,
			"planType":      "MockPlan",
			"estimatedCost": 100,
			"operations": []interface{}{
				map[string]interface{}{"type": "scan", "method": "TABLE_SCAN"},
				map[string]interface{}{"type": "filter", "method": "PREDICATE_FILTER"},
				map[string]interface{}{"type": "project", "method": "COLUMN_PROJECTION"},
			},
			"timestamp": now.UnixMilli(),
		},
	}, nil
}

// Calls returns how many times Generate has been invoked.
func (g *MockGenerator) Calls() int64 {
	return g.calls.Load()
}

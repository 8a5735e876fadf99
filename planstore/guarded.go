package planstore

import (
	"context"

	"github.com/agentuity/go-plancache/plan"
	"github.com/agentuity/go-plancache/resilience"
)

// Guarded routes every call to an underlying Store through a circuit
// breaker. While the circuit is open calls fail fast with
// resilience.ErrOpen instead of waiting on an unreachable backend.
type Guarded struct {
	store   Store
	breaker *resilience.Breaker
}

var _ Store = (*Guarded)(nil)

// NewGuarded wraps s. Closing the Guarded closes s.
func NewGuarded(s Store, b *resilience.Breaker) *Guarded {
	return &Guarded{store: s, breaker: b}
}

// Breaker returns the circuit breaker in front of the store.
func (g *Guarded) Breaker() *resilience.Breaker {
	return g.breaker
}

func (g *Guarded) Load(ctx context.Context, key string) (p *plan.Plan, found bool, err error) {
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		var lerr error
		p, found, lerr = g.store.Load(ctx, key)
		return lerr
	})
	return p, found, err
}

func (g *Guarded) Save(ctx context.Context, key string, p *plan.Plan) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.store.Save(ctx, key, p)
	})
}

func (g *Guarded) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.store.Delete(ctx, keys...)
	})
}

func (g *Guarded) Close() error {
	return g.store.Close()
}

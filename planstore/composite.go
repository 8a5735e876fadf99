package planstore

import (
	"context"

	"github.com/agentuity/go-plancache/plan"
	"golang.org/x/sync/errgroup"
)

type composite struct {
	stores []Store
}

var _ Store = (*composite)(nil)

// NewComposite chains stores. Load checks them in order and returns the
// first hit; a hit in a later store is written back to the earlier ones.
// Save and Delete run against every store concurrently and return the first
// error. Panics when no store is given.
func NewComposite(stores ...Store) Store {
	if len(stores) == 0 {
		panic("planstore: NewComposite requires at least one store")
	}
	return &composite{stores: stores}
}

func (c *composite) Load(ctx context.Context, key string) (*plan.Plan, bool, error) {
	for i, s := range c.stores {
		p, found, err := s.Load(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if found {
			for _, earlier := range c.stores[:i] {
				_ = earlier.Save(ctx, key, p)
			}
			return p, true, nil
		}
	}
	return nil, false, nil
}

func (c *composite) Save(ctx context.Context, key string, p *plan.Plan) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range c.stores {
		g.Go(func() error { return s.Save(gctx, key, p) })
	}
	return g.Wait()
}

func (c *composite) Delete(ctx context.Context, keys ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range c.stores {
		g.Go(func() error { return s.Delete(gctx, keys...) })
	}
	return g.Wait()
}

func (c *composite) Close() error {
	var firstErr error
	for _, s := range c.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

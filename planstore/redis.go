package planstore

import (
	"context"

	"github.com/agentuity/go-plancache/plan"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// Redis stores each plan as a hash: field "v" holds the msgpack encoded plan
// and field "h" counts loads.
type Redis struct {
	client     *redis.Client
	cfg        config
	ownsClient bool
}

var _ Store = (*Redis)(nil)

// NewRedis returns a Store backed by client. The caller owns the client
// lifecycle; Close does not close it.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	return &Redis{client: client, cfg: applyOptions(opts)}
}

func (r *Redis) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.cfg.queryTimeout)
}

func (r *Redis) Load(ctx context.Context, key string) (*plan.Plan, bool, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	k := r.cfg.prefixKey(key)
	data, err := r.client.HGet(qctx, k, "v").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "planstore: redis load %s", key)
	}
	p, err := decodePlan(data)
	if err != nil {
		return nil, false, err
	}
	// hit counting is best effort
	r.client.HIncrBy(qctx, k, "h", 1)
	return p, true, nil
}

func (r *Redis) Save(ctx context.Context, key string, p *plan.Plan) error {
	data, err := encodePlan(p)
	if err != nil {
		return err
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	k := r.cfg.prefixKey(key)
	pipe := r.client.Pipeline()
	pipe.HSet(qctx, k, "v", data, "h", 0)
	pipe.Expire(qctx, k, r.cfg.expires)
	if _, err := pipe.Exec(qctx); err != nil {
		return errors.Wrapf(err, "planstore: redis save %s", key)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.cfg.prefixKey(k)
	}
	if err := r.client.Del(qctx, prefixed...).Err(); err != nil {
		return errors.Wrap(err, "planstore: redis delete")
	}
	return nil
}

// Hits returns how many times key has been loaded since it was saved.
func (r *Redis) Hits(ctx context.Context, key string) (bool, int) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	hits, err := r.client.HGet(qctx, r.cfg.prefixKey(key), "h").Int()
	if err != nil {
		return false, 0
	}
	return true, hits
}

// Close closes the client only when the store was created by Open.
func (r *Redis) Close() error {
	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}

package planstore

import (
	"context"
	"testing"
	"time"

	"github.com/agentuity/go-plancache/resilience"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardedStore(t *testing.T) {
	g := NewGuarded(NewMemory(context.Background()), resilience.New(resilience.DefaultConfig()))
	defer g.Close()
	exerciseStore(t, g)
	assert.Equal(t, resilience.StateClosed, g.Breaker().State())
}

func TestGuardedStoreFailsFast(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	g := NewGuarded(NewRedis(client), resilience.New(resilience.Config{MaxFailures: 2, Cooldown: time.Hour}))
	defer client.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := g.Load(ctx, "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrOpen)
	}
	assert.Equal(t, resilience.StateOpen, g.Breaker().State())

	_, found, err := g.Load(ctx, "k")
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.False(t, found)
	assert.ErrorIs(t, g.Save(ctx, "k", testPlan(t, "SELECT ?")), resilience.ErrOpen)
	assert.ErrorIs(t, g.Delete(ctx, "k"), resilience.ErrOpen)
	assert.NoError(t, g.Delete(ctx))
}

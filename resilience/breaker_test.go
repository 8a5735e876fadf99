package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock, *[]string) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var transitions []string
	cfg.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	b := New(cfg)
	b.now = clock.Now
	return b, clock, &transitions
}

func fail(ctx context.Context) error { return errBoom }
func succeed(ctx context.Context) error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _, transitions := newTestBreaker(Config{MaxFailures: 3, Cooldown: time.Minute})
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, 0, b.Stats().Failures, "success resets the streak")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(ctx context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"CLOSED->OPEN"}, *transitions)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b, clock, transitions := newTestBreaker(Config{MaxFailures: 1, Cooldown: time.Minute, SuccessThreshold: 2})
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrOpen)

	clock.Advance(time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, *transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock, _ := newTestBreaker(Config{MaxFailures: 1, Cooldown: time.Second})
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	clock.Advance(time.Second)
	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrOpen)
}

func TestBreakerLimitsProbes(t *testing.T) {
	b, clock, _ := newTestBreaker(Config{MaxFailures: 1, Cooldown: time.Second, MaxProbes: 1})
	ctx := context.Background()
	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	clock.Advance(time.Second)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(ctx context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, b.Stats().Probes)
}

func TestBreakerRequestTimeout(t *testing.T) {
	b, _, _ := newTestBreaker(Config{MaxFailures: 1, RequestTimeout: 10 * time.Millisecond})
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresCallerCancel(t *testing.T) {
	b, _, _ := newTestBreaker(Config{MaxFailures: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b, _, transitions := newTestBreaker(Config{MaxFailures: 1})
	assert.ErrorIs(t, b.Execute(context.Background(), fail), errBoom)
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Stats{State: StateClosed}, b.Stats())
	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->CLOSED"}, *transitions)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNKNOWN", State(9).String())
}

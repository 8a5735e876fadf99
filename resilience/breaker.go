// Package resilience protects calls to remote dependencies with a circuit
// breaker.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var ErrOpen = errors.New("circuit breaker is open")

// State of a Breaker.
type State int32

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config defines the thresholds of a Breaker.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int

	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration

	// MaxProbes is the number of concurrent calls allowed while half-open.
	MaxProbes int

	// SuccessThreshold is the number of successful probes that close the circuit.
	SuccessThreshold int

	// RequestTimeout bounds a single call. Zero leaves the caller's context alone.
	RequestTimeout time.Duration

	// OnStateChange is called after every transition, outside the breaker lock.
	OnStateChange func(from, to State)
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Cooldown:         30 * time.Second,
		MaxProbes:        1,
		SuccessThreshold: 2,
		RequestTimeout:   5 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
}

// New returns a closed Breaker. Zero thresholds fall back to DefaultConfig.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = def.MaxProbes
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open. Context cancellation by the
// caller is not counted as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := b.before()
	if err != nil {
		return err
	}
	if b.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.RequestTimeout)
		defer cancel()
	}
	err = fn(ctx)
	b.after(ctx, probe, err)
	return err
}

func (b *Breaker) before() (bool, error) {
	b.mu.Lock()
	var changed bool
	defer func() {
		b.mu.Unlock()
		if changed {
			b.notify(StateOpen, StateHalfOpen)
		}
	}()
	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.successes = 0
		b.probes = 0
		changed = true
	}
	if b.probes >= b.cfg.MaxProbes {
		return false, ErrOpen
	}
	b.probes++
	return true, nil
}

func (b *Breaker) after(ctx context.Context, probe bool, err error) {
	b.mu.Lock()
	from := b.state
	if probe {
		b.probes--
	}
	switch {
	case err == nil:
		b.onSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled:
		// abandoned by the caller
	default:
		b.onFailure()
	}
	to := b.state
	b.mu.Unlock()
	if from != to {
		b.notify(from, to)
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

func (b *Breaker) onFailure() {
	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.MaxFailures {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.successes = 0
}

func (b *Breaker) notify(from, to State) {
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// State returns the current state. An open circuit whose cooldown has passed
// still reports StateOpen until the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit and clears the counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probes = 0
	b.mu.Unlock()
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}

// Stats is a snapshot of a Breaker.
type Stats struct {
	State     State
	Failures  int
	Successes int
	Probes    int
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{State: b.state, Failures: b.failures, Successes: b.successes, Probes: b.probes}
}

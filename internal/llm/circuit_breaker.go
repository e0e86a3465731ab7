package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright.
// Callers on the retrieval path treat it like any other transient
// failure and degrade to empty results.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig tunes the circuit breaker around an external service.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure count that trips the
	// circuit (default: 3).
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before allowing
	// probe requests (default: 30s).
	OpenTimeout time.Duration
	// ProbeSuccesses is the consecutive-success count in half-open
	// state needed to close the circuit again (default: 2).
	ProbeSuccesses uint32
}

// BreakerStats is a snapshot of breaker activity for health reporting.
type BreakerStats struct {
	Requests  uint64
	Successes uint64
	Failures  uint64
	State     string
}

// Breaker wraps gobreaker for the embedding and completion clients.
type Breaker struct {
	cb *gobreaker.CircuitBreaker

	mu        sync.Mutex
	requests  uint64
	successes uint64
	failures  uint64
}

// NewBreaker builds a Breaker, applying defaults for zero-valued fields.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.ProbeSuccesses == 0 {
		cfg.ProbeSuccesses = 2
	}

	b := &Breaker{}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.ProbeSuccesses,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})
	return b
}

// Do runs fn through the breaker. An open circuit returns ErrCircuitOpen
// without invoking fn. Context cancellation counts as a failure.
func (b *Breaker) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		b.record(false)
		return nil, err
	}

	result, err := b.cb.Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	b.record(err == nil)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

// Stats returns a snapshot of breaker counters and the current state.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var state string
	switch b.cb.State() {
	case gobreaker.StateClosed:
		state = "closed"
	case gobreaker.StateOpen:
		state = "open"
	case gobreaker.StateHalfOpen:
		state = "half-open"
	default:
		state = "unknown"
	}

	return BreakerStats{
		Requests:  b.requests,
		Successes: b.successes,
		Failures:  b.failures,
		State:     state,
	}
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	if ok {
		b.successes++
	} else {
		b.failures++
	}
}

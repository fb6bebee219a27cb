package backend

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the circuit breaker is open and
// rejects requests so a struggling API server is not hammered further.
var ErrCircuitOpen = errors.New("backend: circuit breaker is open")

// breakerConfig tunes the circuit breaker protecting API calls.
type breakerConfig struct {
	// maxFailures is the number of consecutive failures that trips
	// the circuit.
	maxFailures uint32

	// timeout is how long the circuit stays open before allowing
	// probe requests.
	timeout time.Duration

	// halfOpenMaxSuccesses is the number of probe successes required
	// to close the circuit again.
	halfOpenMaxSuccesses uint32
}

// circuitBreaker wraps gobreaker for the API client. All endpoint calls
// go through Execute, so a dead backend fails fast instead of burning a
// full HTTP timeout per call while the merge dialog is open.
type circuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

// newCircuitBreaker builds a breaker with the client's defaults:
// 3 consecutive failures trip it, it stays open for 15 seconds, and
// 2 probe successes close it.
func newCircuitBreaker() *circuitBreaker {
	return newCircuitBreakerWithConfig(breakerConfig{
		maxFailures:          3,
		timeout:              15 * time.Second,
		halfOpenMaxSuccesses: 2,
	})
}

func newCircuitBreakerWithConfig(cfg breakerConfig) *circuitBreaker {
	settings := gobreaker.Settings{
		Name:        "NarrativeAPIBreaker",
		MaxRequests: cfg.halfOpenMaxSuccesses,
		Timeout:     cfg.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.maxFailures
		},
	}

	return &circuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// execute runs fn through the breaker. An open circuit returns
// ErrCircuitOpen immediately; a cancelled context short-circuits
// without touching the breaker's counts.
func (cb *circuitBreaker) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

// state reports the breaker state as "closed", "open" or "half-open".
func (cb *circuitBreaker) state() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

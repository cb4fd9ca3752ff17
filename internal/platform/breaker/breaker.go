// Package breaker builds the gobreaker circuit breakers that guard the
// third-party REST APIs.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/retry"
	"github.com/sony/gobreaker"
)

const (
	halfOpenRequests = 1
	countInterval    = 60 * time.Second
	openTimeout      = 30 * time.Second
	minRequests      = 5
	failureRatio     = 0.6
)

// StateFunc receives breaker transitions as 0=closed, 1=half-open, 2=open.
type StateFunc func(name string, state float64)

// New creates a breaker that trips when at least 60% of 5 or more requests
// in a minute fail. Upstream 4xx responses count as successes since they say
// nothing about the upstream's health.
func New(name string, onState StateFunc) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpenRequests,
		Interval:    countInterval,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if onState != nil {
				onState(name, StateValue(to))
			}
		},
		IsSuccessful: IsHealthy,
	})
}

// IsHealthy reports whether err leaves the upstream's health unquestioned.
func IsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500 && statusErr.StatusCode != 429
	}
	return false
}

func StateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Check fails while cb is open so readiness can report the upstream as
// unavailable without making a request.
func Check(cb *gobreaker.CircuitBreaker) error {
	if cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s: %w", cb.Name(), gobreaker.ErrOpenState)
	}
	return nil
}

// Execute runs fn through cb and returns its typed result.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

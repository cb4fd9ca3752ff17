package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
)

const (
	fallbackCacheTTL     = 5 * time.Minute
	breakerFailureCount  = 5
	breakerOpenDelay     = 30 * time.Second
	breakerSuccessNeeded = 1
)

// BreakerStateFunc receives breaker state changes (0=closed, 1=half-open, 2=open).
type BreakerStateFunc func(state float64)

// CircuitBreakerHook implements redis.Hook to add circuit breaker protection
// to all Redis operations. While open, GET commands are served from the last
// value seen for the key; everything else fails fast.
type CircuitBreakerHook struct {
	cb    circuitbreaker.CircuitBreaker[any]
	cache *fallbackCache
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

type fallbackCache struct {
	mu     sync.RWMutex
	values map[string]cachedValue
}

type cachedValue struct {
	data      string
	timestamp time.Time
}

// NewCircuitBreakerHook opens after 5 consecutive failures, lets one trial
// call through after 30s and closes when that call succeeds. onState may be
// nil.
func NewCircuitBreakerHook(onState BreakerStateFunc) *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(breakerFailureCount).
		WithDelay(breakerOpenDelay).
		WithSuccessThreshold(breakerSuccessNeeded).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if onState != nil {
				onState(stateToFloat(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerHook{
		cb:    cb,
		cache: &fallbackCache{values: make(map[string]cachedValue)},
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return h.fallback(cmd)
		}

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
			return err
		}
		h.cb.RecordSuccess()
		if err == nil {
			h.remember(cmd)
		}
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}

		err := next(ctx, cmds)
		if err != nil {
			h.cb.RecordError(err)
			return fmt.Errorf("circuit breaker pipeline failed: %w", err)
		}
		h.cb.RecordSuccess()
		return nil
	}
}

func (h *CircuitBreakerHook) fallback(cmd goredis.Cmder) error {
	if cmd.Name() == "get" {
		if c, ok := cmd.(*goredis.StringCmd); ok {
			if v, ok := h.lookup(cmd); ok {
				slog.Debug("Circuit breaker open, serving from cache", "command", "get", "args", cmd.Args())
				c.SetVal(v)
				return nil
			}
		}
	}
	return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
}

func (h *CircuitBreakerHook) remember(cmd goredis.Cmder) {
	c, ok := cmd.(*goredis.StringCmd)
	if !ok || cmd.Name() != "get" || len(cmd.Args()) < 2 {
		return
	}
	v, err := c.Result()
	if err != nil || v == "" {
		return
	}

	key := fmt.Sprintf("%v", cmd.Args()[1])
	h.cache.mu.Lock()
	h.cache.values[key] = cachedValue{data: v, timestamp: time.Now()}
	h.cache.mu.Unlock()
}

func (h *CircuitBreakerHook) lookup(cmd goredis.Cmder) (string, bool) {
	if len(cmd.Args()) < 2 {
		return "", false
	}
	key := fmt.Sprintf("%v", cmd.Args()[1])

	h.cache.mu.RLock()
	defer h.cache.mu.RUnlock()

	cached, ok := h.cache.values[key]
	if !ok || time.Since(cached.timestamp) > fallbackCacheTTL {
		return "", false
	}
	return cached.data, true
}

// State returns the current breaker state.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}

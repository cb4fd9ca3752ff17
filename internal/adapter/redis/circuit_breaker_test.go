package redis

import (
	"context"
	"sync"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, 0.0, stateToFloat(circuitbreaker.ClosedState))
	assert.Equal(t, 1.0, stateToFloat(circuitbreaker.HalfOpenState))
	assert.Equal(t, 2.0, stateToFloat(circuitbreaker.OpenState))
}

func TestCircuitBreakerHook_OpensOnUnreachableRedis(t *testing.T) {
	var mu sync.Mutex
	var states []float64
	hook := NewCircuitBreakerHook(func(s float64) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	client.AddHook(hook)
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	for range breakerFailureCount + 1 {
		_ = client.Get(ctx, "role_cache:any").Err()
	}

	assert.Equal(t, circuitbreaker.OpenState, hook.State())

	err := client.Get(ctx, "role_cache:any").Err()
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, 2.0)
}

func TestCircuitBreakerHook_FallbackServesRememberedGet(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	seen := goredis.NewStringCmd(context.Background(), "get", "role_cache:u1")
	seen.SetVal("senior")
	hook.remember(seen)

	cmd := goredis.NewStringCmd(context.Background(), "get", "role_cache:u1")
	err := hook.fallback(cmd)

	assert.NoError(t, err)
	assert.Equal(t, "senior", cmd.Val())

	miss := goredis.NewStringCmd(context.Background(), "get", "role_cache:u2")
	assert.ErrorIs(t, hook.fallback(miss), circuitbreaker.ErrOpen)
}

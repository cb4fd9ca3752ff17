package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const roleCacheTTL = 10 * time.Minute

// RoleCacheRepo is a two-layer role cache: a short-lived in-process map in
// front of Redis. Only defined roles are cached.
type RoleCacheRepo struct {
	rdb     goredis.Cmdable
	mem     *memoryCache
	metrics *metrics.RoleCacheMetrics
}

func NewRoleCacheRepo(rdb goredis.Cmdable, clock clockwork.Clock, memTTL time.Duration, m *metrics.RoleCacheMetrics) *RoleCacheRepo {
	return &RoleCacheRepo{
		rdb:     rdb,
		mem:     newMemoryCache(clock, memTTL),
		metrics: m,
	}
}

// StartEvictionTimer periodically drops expired in-memory entries.
// Returns a stop function that should be deferred.
func (r *RoleCacheRepo) StartEvictionTimer(interval time.Duration) func() {
	ticker := r.mem.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := r.mem.evictExpired(); evicted > 0 {
					slog.Debug("Evicted expired role cache entries", "count", evicted, "remaining", r.mem.size())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

func (r *RoleCacheRepo) Get(ctx context.Context, userID uuid.UUID) (domain.Role, bool, error) {
	if role, ok := r.mem.get(userID); ok {
		r.hit()
		return role, true, nil
	}

	val, err := r.rdb.Get(ctx, roleCacheKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		r.miss()
		return domain.RoleUndefined, false, nil
	}
	if err != nil {
		r.miss()
		return domain.RoleUndefined, false, fmt.Errorf("failed to read role cache: %w", err)
	}

	role, err := domain.ParseRole(val)
	if err != nil {
		slog.Warn("Discarding malformed cached role", "user_id", userID.String(), "value", val)
		r.miss()
		return domain.RoleUndefined, false, nil
	}

	r.hit()
	r.mem.set(userID, role)
	return role, true, nil
}

func (r *RoleCacheRepo) Set(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	if !role.Defined() {
		return nil
	}
	r.mem.set(userID, role)
	if err := r.rdb.Set(ctx, roleCacheKey(userID), string(role), roleCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to write role cache: %w", err)
	}
	return nil
}

func (r *RoleCacheRepo) Invalidate(ctx context.Context, userID uuid.UUID) error {
	r.forget(userID)
	if err := r.rdb.Del(ctx, roleCacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate role cache: %w", err)
	}
	return nil
}

// forget drops only the in-memory entry; used when another instance announced a change.
func (r *RoleCacheRepo) forget(userID uuid.UUID) {
	r.mem.invalidate(userID)
	if r.metrics != nil {
		r.metrics.Invalidations.Inc()
	}
}

func (r *RoleCacheRepo) hit() {
	if r.metrics != nil {
		r.metrics.Hits.Inc()
	}
}

func (r *RoleCacheRepo) miss() {
	if r.metrics != nil {
		r.metrics.Misses.Inc()
	}
}

func roleCacheKey(userID uuid.UUID) string {
	return "role_cache:" + userID.String()
}

// memoryCache is an in-memory L1 cache with TTL-based expiry.
type memoryCache struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[uuid.UUID]memoryCacheEntry
	ttl     time.Duration
}

type memoryCacheEntry struct {
	role      domain.Role
	expiresAt time.Time
}

func newMemoryCache(clock clockwork.Clock, ttl time.Duration) *memoryCache {
	return &memoryCache{
		clock:   clock,
		entries: make(map[uuid.UUID]memoryCacheEntry),
		ttl:     ttl,
	}
}

func (c *memoryCache) get(userID uuid.UUID) (domain.Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return domain.RoleUndefined, false
	}
	return entry.role, true
}

func (c *memoryCache) set(userID uuid.UUID, role domain.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = memoryCacheEntry{role: role, expiresAt: c.clock.Now().Add(c.ttl)}
}

func (c *memoryCache) invalidate(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *memoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

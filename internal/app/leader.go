package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderLockKey elects the instance that runs the reminder batch.
const ReminderLockKey = "reminders:leader"

// releaseScript deletes the lock only while this instance still holds it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// LeaderElector implements Redis-based leader election using SETNX with TTL.
type LeaderElector struct {
	rdb        *redis.Client
	instanceID string
	lockKey    string
	lockTTL    time.Duration
}

// NewLeaderElector creates a leader election coordinator on lockKey.
// instanceID should be unique per instance (e.g., hostname-PID). The leader
// must renew more often than ttl.
func NewLeaderElector(rdb *redis.Client, instanceID, lockKey string, ttl time.Duration) *LeaderElector {
	return &LeaderElector{
		rdb:        rdb,
		instanceID: instanceID,
		lockKey:    lockKey,
		lockTTL:    ttl,
	}
}

// RenewInterval is how often the holder renews: half the lease, so one
// missed renewal does not lose it.
func (l *LeaderElector) RenewInterval() time.Duration {
	return l.lockTTL / 2
}

// TryAcquire attempts to become the leader.
// Returns true if this instance acquired leadership, false if another instance is leader.
func (l *LeaderElector) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.lockKey, l.instanceID, l.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	return ok, nil
}

// Renew extends the leader lease. Returns an error if we're no longer the leader.
func (l *LeaderElector) Renew(ctx context.Context) error {
	currentLeader, err := l.rdb.Get(ctx, l.lockKey).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("leader lock lost")
	}
	if err != nil {
		return fmt.Errorf("failed to check leader: %w", err)
	}

	if currentLeader != l.instanceID {
		return fmt.Errorf("leader lock stolen by %s", currentLeader)
	}

	ok, err := l.rdb.Expire(ctx, l.lockKey, l.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to renew leader lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("leader lock lost during renewal")
	}

	return nil
}

// Release voluntarily releases leadership. Called on graceful shutdown.
func (l *LeaderElector) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.lockKey}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ReminderLedger claims appointments for reminding with SET NX so that two
// overlapping batches never notify the same appointment twice.
type ReminderLedger struct {
	rdb goredis.Cmdable
}

var _ domain.ReminderLedger = (*ReminderLedger)(nil)

func NewReminderLedger(rdb goredis.Cmdable) *ReminderLedger {
	return &ReminderLedger{rdb: rdb}
}

func (l *ReminderLedger) Claim(ctx context.Context, appointmentID uuid.UUID, ttl time.Duration) (bool, error) {
	args := goredis.SetArgs{TTL: ttl, Mode: "NX"}
	_, err := l.rdb.SetArgs(ctx, reminderKey(appointmentID), "1", args).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	return true, nil
}

// Release frees a claim after a failed delivery so the next batch retries.
func (l *ReminderLedger) Release(ctx context.Context, appointmentID uuid.UUID) error {
	if err := l.rdb.Del(ctx, reminderKey(appointmentID)).Err(); err != nil {
		return fmt.Errorf("failed to release reminder claim: %w", err)
	}
	return nil
}

func reminderKey(appointmentID uuid.UUID) string {
	return "reminder_sent:" + appointmentID.String()
}

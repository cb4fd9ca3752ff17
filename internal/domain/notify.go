package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	UserID  uuid.UUID
	Email   string
	Subject string
	Body    string
}

// Notifier delivers outbound notifications (email, SMS).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ReminderLedger records which appointments have had reminders sent so that
// concurrent batches never notify twice.
type ReminderLedger interface {
	// Claim returns true if the caller is the first to claim appointmentID.
	Claim(ctx context.Context, appointmentID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, appointmentID uuid.UUID) error
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentDeclined  AppointmentStatus = "declined"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending:   {AppointmentConfirmed, AppointmentDeclined, AppointmentCancelled},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Blocking reports whether an appointment in this status occupies the specialist's calendar.
func (s AppointmentStatus) Blocking() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

type Appointment struct {
	ID              uuid.UUID
	SeniorID        uuid.UUID
	SpecialistID    uuid.UUID
	Issue           string
	StartsAt        time.Time
	DurationMinutes int
	PriceCents      int64
	Status          AppointmentStatus
	Paid            bool
	PaymentIntentID string
	ReminderSentAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Involves reports whether userID is the senior or specialist of a.
func (a *Appointment) Involves(userID uuid.UUID) bool {
	return a.SeniorID == userID || a.SpecialistID == userID
}

// Counterpart returns the other participant.
func (a *Appointment) Counterpart(userID uuid.UUID) uuid.UUID {
	if a.SeniorID == userID {
		return a.SpecialistID
	}
	return a.SeniorID
}

type AppointmentRepository interface {
	// Create inserts a unless it overlaps a blocking appointment of the same
	// specialist, in which case ErrSlotUnavailable is returned.
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListForSenior(ctx context.Context, seniorID uuid.UUID) ([]Appointment, error)
	ListForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]Appointment, error)
	List(ctx context.Context, status AppointmentStatus, limit, offset int) ([]Appointment, error)
	// UpdateStatus moves id from one status to another; ErrAppointmentChanged
	// if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) error
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) error
	SharesAppointment(ctx context.Context, a, b uuid.UUID) (bool, error)
	ListDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	CountByStatus(ctx context.Context) (map[AppointmentStatus]int, error)
}

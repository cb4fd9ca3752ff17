package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	MinAppointmentMinutes  = 30
	MaxAppointmentMinutes  = 240
	AppointmentStepMinutes = 15
	maxIssueLength         = 2000
)

type BookingRequest struct {
	SpecialistID    uuid.UUID
	Issue           string
	StartsAt        time.Time
	DurationMinutes int
}

// BookingService books and moves appointments through their lifecycle.
type BookingService struct {
	appointments domain.AppointmentRepository
	specialists  domain.SpecialistRepository
	profiles     domain.ProfileRepository
	payments     domain.PaymentRepository
	gateway      domain.PaymentGateway
	notifier     domain.Notifier
	clock        clockwork.Clock
}

func NewBookingService(
	appointments domain.AppointmentRepository,
	specialists domain.SpecialistRepository,
	profiles domain.ProfileRepository,
	payments domain.PaymentRepository,
	gateway domain.PaymentGateway,
	notifier domain.Notifier,
	clock clockwork.Clock,
) *BookingService {
	return &BookingService{
		appointments: appointments,
		specialists:  specialists,
		profiles:     profiles,
		payments:     payments,
		gateway:      gateway,
		notifier:     notifier,
		clock:        clock,
	}
}

// Book creates a pending appointment for seniorID. The price is the
// specialist's hourly rate prorated to the duration.
func (s *BookingService) Book(ctx context.Context, seniorID uuid.UUID, req BookingRequest) (*domain.Appointment, error) {
	if err := s.validateBooking(seniorID, req); err != nil {
		return nil, err
	}

	specialist, err := s.specialists.GetByID(ctx, req.SpecialistID)
	if err != nil {
		return nil, err
	}
	if !specialist.Bookable() {
		return nil, domain.ErrSpecialistUnavailable
	}

	now := s.clock.Now()
	appt, err := s.appointments.Create(ctx, domain.Appointment{
		ID:              uuid.New(),
		SeniorID:        seniorID,
		SpecialistID:    req.SpecialistID,
		Issue:           strings.TrimSpace(req.Issue),
		StartsAt:        req.StartsAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		PriceCents:      Price(specialist.HourlyRateCents, req.DurationMinutes),
		Status:          domain.AppointmentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Appointment booked", "appointment_id", appt.ID, "specialist_id", appt.SpecialistID, "starts_at", appt.StartsAt)
	s.notify(ctx, appt.SpecialistID, "New appointment request",
		fmt.Sprintf("You have a new request for %s: %s", appt.StartsAt.Format(time.RFC1123), appt.Issue))
	return appt, nil
}

// Price prorates an hourly rate to minutes, rounding down to the cent.
func Price(hourlyRateCents int64, minutes int) int64 {
	return hourlyRateCents * int64(minutes) / 60
}

func (s *BookingService) validateBooking(seniorID uuid.UUID, req BookingRequest) error {
	switch {
	case req.SpecialistID == uuid.Nil:
		return apperrors.ValidationError("specialist is required")
	case req.SpecialistID == seniorID:
		return apperrors.ValidationError("cannot book yourself")
	case strings.TrimSpace(req.Issue) == "":
		return apperrors.ValidationError("describe the issue you need help with")
	case len(req.Issue) > maxIssueLength:
		return apperrors.ValidationError("issue description is too long").WithField("max_length", maxIssueLength)
	case req.DurationMinutes < MinAppointmentMinutes || req.DurationMinutes > MaxAppointmentMinutes:
		return apperrors.ValidationError(fmt.Sprintf("duration must be between %d and %d minutes", MinAppointmentMinutes, MaxAppointmentMinutes)).
			WithField("duration_minutes", req.DurationMinutes)
	case req.DurationMinutes%AppointmentStepMinutes != 0:
		return apperrors.ValidationError(fmt.Sprintf("duration must be a multiple of %d minutes", AppointmentStepMinutes)).
			WithField("duration_minutes", req.DurationMinutes)
	case !req.StartsAt.After(s.clock.Now()):
		return apperrors.ValidationError("appointment must start in the future").WithField("starts_at", req.StartsAt)
	}
	return nil
}

// Get returns an appointment userID takes part in.
func (s *BookingService) Get(ctx context.Context, userID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appt.Involves(userID) {
		return nil, domain.ErrNotParticipant
	}
	return appt, nil
}

func (s *BookingService) ListForSenior(ctx context.Context, seniorID uuid.UUID) ([]domain.Appointment, error) {
	return s.appointments.ListForSenior(ctx, seniorID)
}

func (s *BookingService) ListForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]domain.Appointment, error) {
	return s.appointments.ListForSpecialist(ctx, specialistID)
}

func (s *BookingService) Accept(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	appt, err := s.transition(ctx, appointmentID, specialistID, domain.RoleSpecialist, domain.AppointmentConfirmed)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, appt.SeniorID, "Appointment confirmed",
		fmt.Sprintf("Your appointment on %s has been confirmed.", appt.StartsAt.Format(time.RFC1123)))
	return appt, nil
}

func (s *BookingService) Decline(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	appt, err := s.transition(ctx, appointmentID, specialistID, domain.RoleSpecialist, domain.AppointmentDeclined)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, appt.SeniorID, "Appointment declined",
		"Your specialist could not take this appointment. Please choose another time or specialist.")
	return appt, nil
}

// Complete marks a confirmed appointment done once it has started.
func (s *BookingService) Complete(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if s.clock.Now().Before(appt.StartsAt) {
		return nil, apperrors.ValidationError("appointment has not started yet").WithField("starts_at", appt.StartsAt)
	}
	return s.transition(ctx, appointmentID, specialistID, domain.RoleSpecialist, domain.AppointmentCompleted)
}

// Cancel cancels a senior's appointment. A paid appointment is refunded; a
// failed refund is logged for follow-up and does not undo the cancellation.
func (s *BookingService) Cancel(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	appt, err := s.transition(ctx, appointmentID, seniorID, domain.RoleSenior, domain.AppointmentCancelled)
	if err != nil {
		return nil, err
	}

	if appt.Paid {
		if err := s.refund(ctx, appt); err != nil {
			slog.ErrorContext(ctx, "Refund failed for cancelled appointment", "appointment_id", appt.ID, "error", err)
		}
	}

	s.notify(ctx, appt.SpecialistID, "Appointment cancelled",
		fmt.Sprintf("The appointment on %s was cancelled by the client.", appt.StartsAt.Format(time.RFC1123)))
	return appt, nil
}

func (s *BookingService) refund(ctx context.Context, appt *domain.Appointment) error {
	payment, err := s.payments.GetSucceededForAppointment(ctx, appt.ID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return fmt.Errorf("appointment %s is marked paid but has no payment", appt.ID)
	}
	if err != nil {
		return err
	}

	intent := payment.PaymentIntentID
	if intent == "" {
		intent = appt.PaymentIntentID
	}
	if err := s.gateway.Refund(ctx, intent); err != nil {
		return err
	}
	if err := s.payments.UpdateStatus(ctx, payment.ID, domain.PaymentRefunded, intent); err != nil {
		return fmt.Errorf("refund issued but not recorded: %w", err)
	}
	slog.InfoContext(ctx, "Appointment refunded", "appointment_id", appt.ID, "payment_id", payment.ID)
	return nil
}

// transition moves an appointment to next on behalf of actor, who must hold
// the given side of the appointment.
func (s *BookingService) transition(ctx context.Context, appointmentID, actor uuid.UUID, side domain.Role, next domain.AppointmentStatus) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	owner := appt.SeniorID
	if side == domain.RoleSpecialist {
		owner = appt.SpecialistID
	}
	if owner != actor {
		return nil, domain.ErrNotParticipant
	}

	if !appt.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, appt.Status, next)
	}
	if err := s.appointments.UpdateStatus(ctx, appt.ID, appt.Status, next); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Appointment status changed", "appointment_id", appt.ID, "from", appt.Status, "to", next)
	appt.Status = next
	appt.UpdatedAt = s.clock.Now()
	return appt, nil
}

func (s *BookingService) notify(ctx context.Context, userID uuid.UUID, subject, body string) {
	if s.notifier == nil {
		return
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Notification skipped, profile unavailable", "user_id", userID, "error", err)
		return
	}
	if err := s.notifier.Notify(ctx, domain.Notification{UserID: userID, Email: profile.Email, Subject: subject, Body: body}); err != nil {
		slog.WarnContext(ctx, "Notification failed", "user_id", userID, "error", err)
	}
}

package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	clock        *clockwork.FakeClock
	appointments *mockAppointmentRepo
	specialists  *mockSpecialistRepo
	profiles     *mockProfileRepo
	payments     *mockPaymentRepo
	gateway      *mockGateway
	notifier     *recordingNotifier
	svc          *BookingService
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		clock:        clockwork.NewFakeClockAt(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)),
		appointments: &mockAppointmentRepo{},
		specialists:  &mockSpecialistRepo{},
		profiles: &mockProfileRepo{
			getByIDFn: func(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
				return &domain.Profile{ID: id, Email: id.String() + "@example.com"}, nil
			},
		},
		payments: &mockPaymentRepo{},
		gateway:  &mockGateway{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewBookingService(f.appointments, f.specialists, f.profiles, f.payments, f.gateway, f.notifier, f.clock)
	return f
}

func bookableSpecialist(id uuid.UUID) *domain.SpecialistProfile {
	return &domain.SpecialistProfile{ProfileID: id, FullName: "Sam", HourlyRateCents: 6000, Verified: true, Available: true}
}

func TestBook_Success(t *testing.T) {
	f := newBookingFixture()
	seniorID, specialistID := uuid.New(), uuid.New()
	f.specialists.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
		return bookableSpecialist(id), nil
	}

	startsAt := f.clock.Now().Add(48 * time.Hour)
	appt, err := f.svc.Book(context.Background(), seniorID, BookingRequest{
		SpecialistID:    specialistID,
		Issue:           " Set up video calls ",
		StartsAt:        startsAt,
		DurationMinutes: 45,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AppointmentPending, appt.Status)
	assert.Equal(t, int64(4500), appt.PriceCents)
	assert.Equal(t, "Set up video calls", appt.Issue)
	assert.Equal(t, seniorID, appt.SeniorID)

	sent := f.notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, specialistID, sent[0].UserID)
}

func TestBook_Validation(t *testing.T) {
	f := newBookingFixture()
	seniorID := uuid.New()
	future := f.clock.Now().Add(time.Hour)

	tests := []struct {
		name string
		req  BookingRequest
	}{
		{"missing specialist", BookingRequest{Issue: "x", StartsAt: future, DurationMinutes: 60}},
		{"self booking", BookingRequest{SpecialistID: seniorID, Issue: "x", StartsAt: future, DurationMinutes: 60}},
		{"empty issue", BookingRequest{SpecialistID: uuid.New(), Issue: "  ", StartsAt: future, DurationMinutes: 60}},
		{"too short", BookingRequest{SpecialistID: uuid.New(), Issue: "x", StartsAt: future, DurationMinutes: 15}},
		{"too long", BookingRequest{SpecialistID: uuid.New(), Issue: "x", StartsAt: future, DurationMinutes: 255}},
		{"off step", BookingRequest{SpecialistID: uuid.New(), Issue: "x", StartsAt: future, DurationMinutes: 50}},
		{"in the past", BookingRequest{SpecialistID: uuid.New(), Issue: "x", StartsAt: f.clock.Now(), DurationMinutes: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), seniorID, tt.req)
			assertValidation(t, err)
		})
	}
}

func TestBook_UnavailableSpecialist(t *testing.T) {
	f := newBookingFixture()
	f.specialists.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
		sp := bookableSpecialist(id)
		sp.Verified = false
		return sp, nil
	}

	_, err := f.svc.Book(context.Background(), uuid.New(), BookingRequest{
		SpecialistID: uuid.New(), Issue: "x", StartsAt: f.clock.Now().Add(time.Hour), DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, domain.ErrSpecialistUnavailable)
}

func TestBook_SlotTaken(t *testing.T) {
	f := newBookingFixture()
	f.specialists.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
		return bookableSpecialist(id), nil
	}
	f.appointments.createFn = func(context.Context, domain.Appointment) (*domain.Appointment, error) {
		return nil, domain.ErrSlotUnavailable
	}

	_, err := f.svc.Book(context.Background(), uuid.New(), BookingRequest{
		SpecialistID: uuid.New(), Issue: "x", StartsAt: f.clock.Now().Add(time.Hour), DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
	assert.Empty(t, f.notifier.notifications())
}

func TestPrice(t *testing.T) {
	assert.Equal(t, int64(3000), Price(6000, 30))
	assert.Equal(t, int64(24000), Price(6000, 240))
	assert.Equal(t, int64(3333), Price(4444, 45))
}

func stubAppointment(f *bookingFixture, appt domain.Appointment) {
	f.appointments.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
		if id != appt.ID {
			return nil, domain.ErrAppointmentNotFound
		}
		cp := appt
		return &cp, nil
	}
}

func TestAccept(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(), Status: domain.AppointmentPending}
	stubAppointment(f, appt)

	var from, to domain.AppointmentStatus
	f.appointments.updateStatusFn = func(_ context.Context, _ uuid.UUID, fr, t domain.AppointmentStatus) error {
		from, to = fr, t
		return nil
	}

	got, err := f.svc.Accept(context.Background(), appt.SpecialistID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentConfirmed, got.Status)
	assert.Equal(t, domain.AppointmentPending, from)
	assert.Equal(t, domain.AppointmentConfirmed, to)

	sent := f.notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, appt.SeniorID, sent[0].UserID)
}

func TestAccept_WrongSpecialist(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(), Status: domain.AppointmentPending}
	stubAppointment(f, appt)

	_, err := f.svc.Accept(context.Background(), uuid.New(), appt.ID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = f.svc.Accept(context.Background(), appt.SeniorID, appt.ID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant, "seniors cannot accept")
}

func TestDecline_OnlyPending(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(), Status: domain.AppointmentConfirmed}
	stubAppointment(f, appt)

	_, err := f.svc.Decline(context.Background(), appt.SpecialistID, appt.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestComplete_NotBeforeStart(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{
		ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(),
		Status: domain.AppointmentConfirmed, StartsAt: f.clock.Now().Add(time.Hour), DurationMinutes: 60,
	}
	stubAppointment(f, appt)

	_, err := f.svc.Complete(context.Background(), appt.SpecialistID, appt.ID)
	assertValidation(t, err)

	f.clock.Advance(2 * time.Hour)
	got, err := f.svc.Complete(context.Background(), appt.SpecialistID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentCompleted, got.Status)
}

func TestTransition_ConcurrentChange(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(), Status: domain.AppointmentPending}
	stubAppointment(f, appt)
	f.appointments.updateStatusFn = func(context.Context, uuid.UUID, domain.AppointmentStatus, domain.AppointmentStatus) error {
		return domain.ErrAppointmentChanged
	}

	_, err := f.svc.Cancel(context.Background(), appt.SeniorID, appt.ID)
	assert.ErrorIs(t, err, domain.ErrAppointmentChanged)
}

func TestCancel_UnpaidSkipsRefund(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(), Status: domain.AppointmentConfirmed}
	stubAppointment(f, appt)
	f.gateway.refundFn = func(context.Context, string) error {
		t.Fatal("unpaid appointments are not refunded")
		return nil
	}

	got, err := f.svc.Cancel(context.Background(), appt.SeniorID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentCancelled, got.Status)
}

func TestCancel_PaidIsRefunded(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{
		ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(),
		Status: domain.AppointmentConfirmed, Paid: true, PaymentIntentID: "pi_1",
	}
	stubAppointment(f, appt)

	paymentID := uuid.New()
	f.payments.getSucceededForAppointmentFn = func(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
		assert.Equal(t, appt.ID, id)
		return &domain.Payment{ID: paymentID, PaymentIntentID: "pi_1", Status: domain.PaymentSucceeded}, nil
	}
	var refunded string
	f.gateway.refundFn = func(_ context.Context, pi string) error {
		refunded = pi
		return nil
	}
	var recorded domain.PaymentStatus
	f.payments.updateStatusFn = func(_ context.Context, id uuid.UUID, status domain.PaymentStatus, _ string) error {
		assert.Equal(t, paymentID, id)
		recorded = status
		return nil
	}

	_, err := f.svc.Cancel(context.Background(), appt.SeniorID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", refunded)
	assert.Equal(t, domain.PaymentRefunded, recorded)
}

func TestCancel_RefundFailureKeepsCancellation(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New(), Status: domain.AppointmentPending, Paid: true}
	stubAppointment(f, appt)
	f.payments.getSucceededForAppointmentFn = func(context.Context, uuid.UUID) (*domain.Payment, error) {
		return &domain.Payment{ID: uuid.New(), PaymentIntentID: "pi_2"}, nil
	}
	f.gateway.refundFn = func(context.Context, string) error { return errors.New("stripe down") }
	f.payments.updateStatusFn = func(context.Context, uuid.UUID, domain.PaymentStatus, string) error {
		t.Fatal("a failed refund must not be recorded")
		return nil
	}

	got, err := f.svc.Cancel(context.Background(), appt.SeniorID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentCancelled, got.Status)
}

func TestGet_RequiresParticipant(t *testing.T) {
	f := newBookingFixture()
	appt := domain.Appointment{ID: uuid.New(), SeniorID: uuid.New(), SpecialistID: uuid.New()}
	stubAppointment(f, appt)

	_, err := f.svc.Get(context.Background(), uuid.New(), appt.ID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	got, err := f.svc.Get(context.Background(), appt.SpecialistID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
}

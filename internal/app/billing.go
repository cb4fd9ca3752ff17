package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/access"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const defaultCurrency = "usd"

// BillingConfig holds the Stripe price ids and the URLs checkout returns to.
type BillingConfig struct {
	AppURL       string
	PriceBasic   string
	PricePremium string
}

func (c BillingConfig) priceFor(plan domain.MembershipPlan) string {
	switch plan {
	case domain.PlanBasic:
		return c.PriceBasic
	case domain.PlanPremium:
		return c.PricePremium
	}
	return ""
}

func (c BillingConfig) planFor(priceID string) (domain.MembershipPlan, bool) {
	switch {
	case priceID == "":
		return "", false
	case priceID == c.PriceBasic:
		return domain.PlanBasic, true
	case priceID == c.PricePremium:
		return domain.PlanPremium, true
	}
	return "", false
}

// BillingService runs appointment payments and memberships through the
// payment gateway and applies its webhook events.
type BillingService struct {
	gateway      domain.PaymentGateway
	payments     domain.PaymentRepository
	memberships  domain.MembershipRepository
	appointments domain.AppointmentRepository
	profiles     domain.ProfileRepository
	cfg          BillingConfig
	clock        clockwork.Clock
}

func NewBillingService(
	gateway domain.PaymentGateway,
	payments domain.PaymentRepository,
	memberships domain.MembershipRepository,
	appointments domain.AppointmentRepository,
	profiles domain.ProfileRepository,
	cfg BillingConfig,
	clock clockwork.Clock,
) *BillingService {
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &BillingService{
		gateway:      gateway,
		payments:     payments,
		memberships:  memberships,
		appointments: appointments,
		profiles:     profiles,
		cfg:          cfg,
		clock:        clock,
	}
}

// CheckoutAppointment opens a one-off checkout for a senior's unpaid
// appointment.
func (s *BillingService) CheckoutAppointment(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.CheckoutSession, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.SeniorID != seniorID {
		return nil, domain.ErrNotParticipant
	}
	if appt.Paid {
		return nil, apperrors.ConflictError("appointment is already paid").WithField("appointment_id", appt.ID.String())
	}
	if !appt.Status.Blocking() {
		return nil, fmt.Errorf("%w: cannot pay a %s appointment", domain.ErrInvalidTransition, appt.Status)
	}

	profile, err := s.profiles.GetByID(ctx, seniorID)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		Mode:              domain.CheckoutPayment,
		CustomerEmail:     profile.Email,
		ClientReferenceID: seniorID.String(),
		AmountCents:       appt.PriceCents,
		Currency:          defaultCurrency,
		ProductName:       fmt.Sprintf("Tech support session (%d min)", appt.DurationMinutes),
		SuccessURL:        s.cfg.AppURL + "/senior/dashboard?checkout=success",
		CancelURL:         s.cfg.AppURL + "/senior/dashboard?checkout=cancelled",
		Metadata:          map[string]string{"kind": "appointment", "appointment_id": appt.ID.String()},
	})
	if err != nil {
		return nil, apperrors.ExternalError("payment provider unavailable", err)
	}

	apptID := appt.ID
	err = s.payments.Create(ctx, domain.Payment{
		ID:                uuid.New(),
		UserID:            seniorID,
		AppointmentID:     &apptID,
		AmountCents:       appt.PriceCents,
		Currency:          defaultCurrency,
		Status:            domain.PaymentPending,
		CheckoutSessionID: sess.ID,
		CreatedAt:         s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record pending payment: %w", err)
	}
	return sess, nil
}

// CheckoutMembership opens a subscription checkout for plan.
func (s *BillingService) CheckoutMembership(ctx context.Context, userID uuid.UUID, plan domain.MembershipPlan) (*domain.CheckoutSession, error) {
	priceID := s.cfg.priceFor(plan)
	if priceID == "" {
		return nil, apperrors.ValidationError("unknown membership plan").WithField("plan", string(plan))
	}

	existing, err := s.memberships.Get(ctx, userID)
	switch {
	case err == nil && existing.Active(s.clock.Now()) && !existing.CancelAtPeriodEnd:
		return nil, apperrors.ConflictError("membership is already active").WithField("plan", string(existing.Plan))
	case err != nil && !errors.Is(err, domain.ErrMembershipNotFound):
		return nil, err
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	dashboard := s.cfg.AppURL + access.DashboardPath(profile.Role)
	sess, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		Mode:              domain.CheckoutSubscription,
		CustomerEmail:     profile.Email,
		ClientReferenceID: userID.String(),
		PriceID:           priceID,
		SuccessURL:        dashboard + "?membership=success",
		CancelURL:         dashboard + "?membership=cancelled",
		Metadata:          map[string]string{"kind": "membership", "plan": string(plan)},
	})
	if err != nil {
		return nil, apperrors.ExternalError("payment provider unavailable", err)
	}
	return sess, nil
}

func (s *BillingService) Membership(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	return s.memberships.Get(ctx, userID)
}

// CancelMembership stops renewal; benefits last until the period ends.
func (s *BillingService) CancelMembership(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	m, err := s.memberships.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m.StripeSubscriptionID == "" || !m.Active(s.clock.Now()) {
		return nil, domain.ErrMembershipNotFound
	}

	sub, err := s.gateway.CancelSubscriptionAtPeriodEnd(ctx, m.StripeSubscriptionID)
	if err != nil {
		return nil, apperrors.ExternalError("payment provider unavailable", err)
	}

	m.CancelAtPeriodEnd = true
	if !sub.CurrentPeriodEnd.IsZero() {
		m.CurrentPeriodEnd = sub.CurrentPeriodEnd
	}
	m.UpdatedAt = s.clock.Now()
	if err := s.memberships.Upsert(ctx, *m); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Membership set to cancel at period end", "user_id", userID, "period_end", m.CurrentPeriodEnd)
	return m, nil
}

// HandleEvent applies a verified payment event. Events referring to records
// this instance does not know are acknowledged and logged so the provider
// stops retrying them.
func (s *BillingService) HandleEvent(ctx context.Context, evt *domain.PaymentEvent) error {
	slog.InfoContext(ctx, "Handling payment event", "event_id", evt.ID, "kind", string(evt.Kind))

	switch evt.Kind {
	case domain.EventCheckoutCompleted:
		if evt.Mode == domain.CheckoutSubscription {
			return s.subscriptionCheckoutCompleted(ctx, evt)
		}
		return s.paymentCheckoutCompleted(ctx, evt)
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		return s.subscriptionChanged(ctx, evt)
	case domain.EventInvoicePaymentFail:
		return s.invoiceFailed(ctx, evt)
	}
	return domain.ErrUnsupportedEvent
}

func (s *BillingService) paymentCheckoutCompleted(ctx context.Context, evt *domain.PaymentEvent) error {
	payment, err := s.payments.GetByCheckoutSession(ctx, evt.CheckoutSessionID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		slog.WarnContext(ctx, "Checkout completed for unknown session", "checkout_session_id", evt.CheckoutSessionID)
		return nil
	}
	if err != nil {
		return err
	}
	if payment.Status == domain.PaymentSucceeded {
		return nil
	}

	if err := s.payments.UpdateStatus(ctx, payment.ID, domain.PaymentSucceeded, evt.PaymentIntentID); err != nil {
		return err
	}
	if payment.AppointmentID != nil {
		if err := s.appointments.MarkPaid(ctx, *payment.AppointmentID, evt.PaymentIntentID); err != nil {
			return fmt.Errorf("mark appointment paid: %w", err)
		}
	}
	slog.InfoContext(ctx, "Payment succeeded", "payment_id", payment.ID, "amount_cents", payment.AmountCents)
	return nil
}

func (s *BillingService) subscriptionCheckoutCompleted(ctx context.Context, evt *domain.PaymentEvent) error {
	userID, err := uuid.Parse(evt.ClientReferenceID)
	if err != nil {
		slog.WarnContext(ctx, "Subscription checkout without user reference", "checkout_session_id", evt.CheckoutSessionID)
		return nil
	}

	sub, err := s.gateway.GetSubscription(ctx, evt.SubscriptionID)
	if err != nil {
		return apperrors.ExternalError("payment provider unavailable", err)
	}

	plan, ok := s.cfg.planFor(sub.PriceID)
	if !ok {
		plan = domain.MembershipPlan(evt.Metadata["plan"])
	}
	if plan != domain.PlanBasic && plan != domain.PlanPremium {
		return fmt.Errorf("subscription %s has unknown price %q", sub.ID, sub.PriceID)
	}

	return s.memberships.Upsert(ctx, domain.Membership{
		UserID:               userID,
		Plan:                 plan,
		Status:               MembershipStatusFor(sub.Status),
		StripeCustomerID:     sub.CustomerID,
		StripeSubscriptionID: sub.ID,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		UpdatedAt:            s.clock.Now(),
	})
}

func (s *BillingService) subscriptionChanged(ctx context.Context, evt *domain.PaymentEvent) error {
	m, err := s.memberships.GetBySubscriptionID(ctx, evt.SubscriptionID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		slog.WarnContext(ctx, "Event for unknown subscription", "subscription_id", evt.SubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}

	if sub := evt.Subscription; sub != nil {
		m.Status = MembershipStatusFor(sub.Status)
		m.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		if !sub.CurrentPeriodEnd.IsZero() {
			m.CurrentPeriodEnd = sub.CurrentPeriodEnd
		}
		if plan, ok := s.cfg.planFor(sub.PriceID); ok {
			m.Plan = plan
		}
	}
	if evt.Kind == domain.EventSubscriptionDeleted {
		m.Status = domain.MembershipCanceled
	}
	m.UpdatedAt = s.clock.Now()
	return s.memberships.Upsert(ctx, *m)
}

func (s *BillingService) invoiceFailed(ctx context.Context, evt *domain.PaymentEvent) error {
	m, err := s.memberships.GetBySubscriptionID(ctx, evt.SubscriptionID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	m.Status = domain.MembershipPastDue
	m.UpdatedAt = s.clock.Now()
	slog.WarnContext(ctx, "Membership payment failed", "user_id", m.UserID, "subscription_id", m.StripeSubscriptionID)
	return s.memberships.Upsert(ctx, *m)
}

// MembershipStatusFor maps a provider subscription status.
func MembershipStatusFor(status string) domain.MembershipStatus {
	switch status {
	case "active", "trialing":
		return domain.MembershipActive
	case "past_due", "unpaid":
		return domain.MembershipPastDue
	case "canceled", "incomplete_expired":
		return domain.MembershipCanceled
	default:
		return domain.MembershipIncomplete
	}
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MembershipPlan string

const (
	PlanBasic   MembershipPlan = "basic"
	PlanPremium MembershipPlan = "premium"
)

type MembershipStatus string

const (
	MembershipActive     MembershipStatus = "active"
	MembershipPastDue    MembershipStatus = "past_due"
	MembershipCanceled   MembershipStatus = "canceled"
	MembershipIncomplete MembershipStatus = "incomplete"
)

type Membership struct {
	UserID               uuid.UUID
	Plan                 MembershipPlan
	Status               MembershipStatus
	StripeCustomerID     string
	StripeSubscriptionID string
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	UpdatedAt            time.Time
}

// Active reports whether the membership grants benefits at now.
func (m *Membership) Active(now time.Time) bool {
	if m.Status != MembershipActive && m.Status != MembershipPastDue {
		return false
	}
	return m.CurrentPeriodEnd.IsZero() || now.Before(m.CurrentPeriodEnd)
}

type MembershipRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*Membership, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Membership, error)
	Upsert(ctx context.Context, m Membership) error
	CountActive(ctx context.Context) (int, error)
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	AppointmentID     *uuid.UUID
	AmountCents       int64
	Currency          string
	Status            PaymentStatus
	CheckoutSessionID string
	PaymentIntentID   string
	CreatedAt         time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, p Payment) error
	GetByCheckoutSession(ctx context.Context, sessionID string) (*Payment, error)
	GetSucceededForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status PaymentStatus, paymentIntentID string) error
	SumSucceeded(ctx context.Context) (int64, error)
}

type CheckoutMode string

const (
	CheckoutPayment      CheckoutMode = "payment"
	CheckoutSubscription CheckoutMode = "subscription"
)

type CheckoutRequest struct {
	Mode              CheckoutMode
	CustomerEmail     string
	ClientReferenceID string
	// PriceID is used for subscriptions; AmountCents/ProductName for one-off payments.
	PriceID     string
	AmountCents int64
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// PaymentGateway is the external payment ledger.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	CancelSubscriptionAtPeriodEnd(ctx context.Context, id string) (*Subscription, error)
	Refund(ctx context.Context, paymentIntentID string) error
}

type PaymentEventKind string

const (
	EventCheckoutCompleted   PaymentEventKind = "checkout.session.completed"
	EventSubscriptionUpdated PaymentEventKind = "customer.subscription.updated"
	EventSubscriptionDeleted PaymentEventKind = "customer.subscription.deleted"
	EventInvoicePaymentFail  PaymentEventKind = "invoice.payment_failed"
)

// PaymentEvent is a verified webhook event reduced to the fields the
// marketplace acts on.
type PaymentEvent struct {
	ID                string
	Kind              PaymentEventKind
	Mode              CheckoutMode
	CheckoutSessionID string
	ClientReferenceID string
	PaymentIntentID   string
	CustomerID        string
	SubscriptionID    string
	Metadata          map[string]string
	Subscription      *Subscription
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const membershipColumns = `user_id, plan, status, stripe_customer_id, stripe_subscription_id,
	current_period_end, cancel_at_period_end, updated_at`

type MembershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *MembershipRepo {
	return &MembershipRepo{pool: pool}
}

func scanMembership(row pgx.Row) (*domain.Membership, error) {
	var m domain.Membership
	var plan, status string
	var periodEnd *time.Time
	err := row.Scan(&m.UserID, &plan, &status, &m.StripeCustomerID, &m.StripeSubscriptionID,
		&periodEnd, &m.CancelAtPeriodEnd, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Plan = domain.MembershipPlan(plan)
	m.Status = domain.MembershipStatus(status)
	if periodEnd != nil {
		m.CurrentPeriodEnd = *periodEnd
	}
	return &m, nil
}

func (r *MembershipRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	m, err := scanMembership(r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (r *MembershipRepo) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Membership, error) {
	m, err := scanMembership(r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE stripe_subscription_id = $1`, subscriptionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership by subscription: %w", err)
	}
	return m, nil
}

func (r *MembershipRepo) Upsert(ctx context.Context, m domain.Membership) error {
	var periodEnd *time.Time
	if !m.CurrentPeriodEnd.IsZero() {
		periodEnd = &m.CurrentPeriodEnd
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO memberships (user_id, plan, status, stripe_customer_id, stripe_subscription_id, current_period_end, cancel_at_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET plan = EXCLUDED.plan,
		    status = EXCLUDED.status,
		    stripe_customer_id = EXCLUDED.stripe_customer_id,
		    stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		    current_period_end = EXCLUDED.current_period_end,
		    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		    updated_at = now()`,
		m.UserID, string(m.Plan), string(m.Status), m.StripeCustomerID, m.StripeSubscriptionID, periodEnd, m.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	return nil
}

func (r *MembershipRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM memberships
		WHERE status IN ('active', 'past_due') AND (current_period_end IS NULL OR current_period_end > now())`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active memberships: %w", err)
	}
	return n, nil
}

const paymentColumns = `id, user_id, appointment_id, amount_cents, currency, status, checkout_session_id, payment_intent_id, created_at`

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.AppointmentID, &p.AmountCents, &p.Currency, &status,
		&p.CheckoutSessionID, &p.PaymentIntentID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, user_id, appointment_id, amount_cents, currency, status, checkout_session_id, payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.AppointmentID, p.AmountCents, p.Currency, string(p.Status), p.CheckoutSessionID, p.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE checkout_session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepo) GetSucceededForAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE appointment_id = $1 AND status = 'succeeded'
		ORDER BY created_at DESC LIMIT 1`, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paymentIntentID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $2, payment_intent_id = COALESCE(NULLIF($3, ''), payment_intent_id)
		WHERE id = $1`, id, string(status), paymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepo) SumSucceeded(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(sum(amount_cents), 0)::bigint FROM payments WHERE status = 'succeeded'`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total, nil
}

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

// appointmentColumns must match the Scan order in scanAppointment.
const appointmentColumns = `id, senior_id, specialist_id, issue, starts_at, duration_minutes, price_cents,
	status, paid, payment_intent_id, reminder_sent_at, created_at, updated_at`

type AppointmentRepo struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) *AppointmentRepo {
	return &AppointmentRepo{pool: pool}
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var a domain.Appointment
	var status string
	err := row.Scan(&a.ID, &a.SeniorID, &a.SpecialistID, &a.Issue, &a.StartsAt, &a.DurationMinutes, &a.PriceCents,
		&status, &a.Paid, &a.PaymentIntentID, &a.ReminderSentAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = domain.AppointmentStatus(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]domain.Appointment, error) {
	defer rows.Close()

	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Create serializes bookings per specialist by locking the specialist row,
// then rejects the insert if it overlaps a pending or confirmed appointment.
func (r *AppointmentRepo) Create(ctx context.Context, a domain.Appointment) (*domain.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT profile_id FROM specialist_profiles WHERE profile_id = $1 FOR UPDATE`, a.SpecialistID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSpecialistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock specialist: %w", err)
	}

	var overlaps bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE specialist_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND starts_at < $3
			  AND starts_at + make_interval(mins => duration_minutes) > $2
		)`, a.SpecialistID, a.StartsAt, a.EndsAt()).Scan(&overlaps)
	if err != nil {
		return nil, fmt.Errorf("failed to check overlap: %w", err)
	}
	if overlaps {
		return nil, domain.ErrSlotUnavailable
	}

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, senior_id, specialist_id, issue, starts_at, duration_minutes, price_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+appointmentColumns,
		a.ID, a.SeniorID, a.SpecialistID, a.Issue, a.StartsAt, a.DurationMinutes, a.PriceCents, string(a.Status)))
	if err != nil {
		return nil, fmt.Errorf("failed to insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit appointment: %w", err)
	}
	return created, nil
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

func (r *AppointmentRepo) ListForSenior(ctx context.Context, seniorID uuid.UUID) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE senior_id = $1 ORDER BY starts_at DESC`, seniorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list senior appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepo) ListForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE specialist_id = $1 ORDER BY starts_at DESC`, specialistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list specialist appointments: %w", err)
	}
	return collectAppointments(rows)
}

// List returns appointments newest first. An empty status lists all.
func (r *AppointmentRepo) List(ctx context.Context, status domain.AppointmentStatus, limit, offset int) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE ($1 = '' OR status = $1)
		ORDER BY starts_at DESC
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.AppointmentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAppointmentChanged
	}
	return nil
}

func (r *AppointmentRepo) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET paid = true, payment_intent_id = $2, updated_at = now()
		WHERE id = $1`, id, paymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to mark appointment paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}

func (r *AppointmentRepo) SharesAppointment(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var shared bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE (senior_id = $1 AND specialist_id = $2) OR (senior_id = $2 AND specialist_id = $1)
		)`, a, b).Scan(&shared)
	if err != nil {
		return false, fmt.Errorf("failed to check shared appointment: %w", err)
	}
	return shared, nil
}

// ListDueReminders returns confirmed appointments starting in [from, to) that
// have not been reminded yet.
func (r *AppointmentRepo) ListDueReminders(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status = 'confirmed' AND reminder_sent_at IS NULL
		  AND starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepo) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE appointments SET reminder_sent_at = $2 WHERE id = $1 AND reminder_sent_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

func (r *AppointmentRepo) CountByStatus(ctx context.Context) (map[domain.AppointmentStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.AppointmentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan appointment count: %w", err)
		}
		counts[domain.AppointmentStatus(status)] = n
	}
	return counts, rows.Err()
}

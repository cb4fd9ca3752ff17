package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const specialistSelect = `
	SELECT s.profile_id, p.full_name, s.bio, s.skills, s.hourly_rate_cents,
	       s.verified, s.available, s.rating, s.updated_at
	FROM specialist_profiles s
	JOIN profiles p ON p.id = s.profile_id`

type SpecialistRepo struct {
	pool *pgxpool.Pool
}

func NewSpecialistRepo(pool *pgxpool.Pool) *SpecialistRepo {
	return &SpecialistRepo{pool: pool}
}

func scanSpecialist(row pgx.Row) (*domain.SpecialistProfile, error) {
	var s domain.SpecialistProfile
	err := row.Scan(&s.ProfileID, &s.FullName, &s.Bio, &s.Skills, &s.HourlyRateCents,
		&s.Verified, &s.Available, &s.Rating, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert writes the editable fields. Verification and rating are owned by
// admin tooling and left untouched on update.
func (r *SpecialistRepo) Upsert(ctx context.Context, s domain.SpecialistProfile) (*domain.SpecialistProfile, error) {
	skills := s.Skills
	if skills == nil {
		skills = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO specialist_profiles (profile_id, bio, skills, hourly_rate_cents, available)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (profile_id) DO UPDATE
		SET bio = EXCLUDED.bio,
		    skills = EXCLUDED.skills,
		    hourly_rate_cents = EXCLUDED.hourly_rate_cents,
		    available = EXCLUDED.available,
		    updated_at = now()`,
		s.ProfileID, s.Bio, skills, s.HourlyRateCents, s.Available)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert specialist profile: %w", err)
	}
	return r.GetByID(ctx, s.ProfileID)
}

func (r *SpecialistRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
	s, err := scanSpecialist(r.pool.QueryRow(ctx, specialistSelect+` WHERE s.profile_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSpecialistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get specialist profile: %w", err)
	}
	return s, nil
}

func (r *SpecialistRepo) ListBookable(ctx context.Context) ([]domain.SpecialistProfile, error) {
	return r.list(ctx, specialistSelect+`
		WHERE s.verified AND s.available AND s.hourly_rate_cents > 0 AND p.role = 'specialist'
		ORDER BY s.rating DESC, p.full_name`)
}

func (r *SpecialistRepo) ListPendingVerification(ctx context.Context) ([]domain.SpecialistProfile, error) {
	return r.list(ctx, specialistSelect+` WHERE NOT s.verified ORDER BY s.updated_at`)
}

func (r *SpecialistRepo) list(ctx context.Context, query string) ([]domain.SpecialistProfile, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list specialists: %w", err)
	}
	defer rows.Close()

	var out []domain.SpecialistProfile
	for rows.Next() {
		s, err := scanSpecialist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan specialist: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SpecialistRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE specialist_profiles SET verified = $2, updated_at = now() WHERE profile_id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("failed to set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSpecialistNotFound
	}
	return nil
}

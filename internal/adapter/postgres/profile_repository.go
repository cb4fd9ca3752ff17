package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// profileColumns must match the Scan order in scanProfile.
const profileColumns = `id, role, full_name, email, phone, city, created_at, updated_at`

const uniqueViolation = "23505"

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var role string
	if err := row.Scan(&p.ID, &role, &p.FullName, &p.Email, &p.Phone, &p.City, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	return &p, nil
}

// Create inserts the profile. A specialist also gets its empty
// specialist_profiles row in the same transaction, so onboarding never leaves
// a specialist without one.
func (r *ProfileRepo) Create(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	var created *domain.Profile
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = scanProfile(tx.QueryRow(ctx, `
			INSERT INTO profiles (id, role, full_name, email, phone, city)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+profileColumns,
			p.ID, string(p.Role), p.FullName, p.Email, p.Phone, p.City))
		if err != nil {
			return err
		}
		if p.Role != domain.RoleSpecialist {
			return nil
		}
		if _, err := tx.Exec(ctx, `INSERT INTO specialist_profiles (profile_id) VALUES ($1) ON CONFLICT DO NOTHING`, p.ID); err != nil {
			return fmt.Errorf("failed to create specialist profile: %w", err)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return nil, domain.ErrProfileExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return created, nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) GetRole(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, id).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RoleUndefined, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.RoleUndefined, fmt.Errorf("failed to get role: %w", err)
	}
	return domain.Role(role), nil
}

func (r *ProfileRepo) SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET role = $2, updated_at = now() WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, fullName, phone, city string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE profiles SET full_name = $2, phone = $3, city = $4, updated_at = now()
		WHERE id = $1`, id, fullName, phone, city)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// List returns profiles newest first. An undefined role lists every role.
func (r *ProfileRepo) List(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(role), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *ProfileRepo) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, count(*) FROM profiles GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Role]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan profile count: %w", err)
		}
		counts[domain.Role(role)] = n
	}
	return counts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Profile is the marketplace record attached to an auth identity.
// ID equals the auth provider's user ID.
type Profile struct {
	ID        uuid.UUID
	Role      Role
	FullName  string
	Email     string
	Phone     string
	City      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProfileRepository interface {
	// Create returns ErrProfileExists if the ID is taken. Creating a
	// specialist also creates its SpecialistProfile atomically.
	Create(ctx context.Context, p Profile) (*Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	SetRole(ctx context.Context, id uuid.UUID, role Role) error
	Update(ctx context.Context, id uuid.UUID, fullName, phone, city string) error
	List(ctx context.Context, role Role, limit, offset int) ([]Profile, error)
	CountByRole(ctx context.Context) (map[Role]int, error)
}

// SpecialistProfile holds the bookable side of a specialist.
type SpecialistProfile struct {
	ProfileID       uuid.UUID
	FullName        string
	Bio             string
	Skills          []string
	HourlyRateCents int64
	Verified        bool
	Available       bool
	Rating          float64
	UpdatedAt       time.Time
}

// Bookable reports whether seniors may book this specialist.
func (s *SpecialistProfile) Bookable() bool {
	return s.Verified && s.Available && s.HourlyRateCents > 0
}

type SpecialistRepository interface {
	Upsert(ctx context.Context, s SpecialistProfile) (*SpecialistProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*SpecialistProfile, error)
	ListBookable(ctx context.Context) ([]SpecialistProfile, error)
	ListPendingVerification(ctx context.Context) ([]SpecialistProfile, error)
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
}

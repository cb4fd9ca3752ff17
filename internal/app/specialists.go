package app

import (
	"context"
	"strings"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
)

const (
	maxSkills          = 20
	maxSkillLength     = 40
	maxBioLength       = 2000
	maxHourlyRateCents = 100_000
)

type SpecialistUpdate struct {
	Bio             string
	Skills          []string
	HourlyRateCents int64
	Available       bool
}

// SpecialistService manages the bookable side of specialist profiles.
// Verification is left to admins.
type SpecialistService struct {
	specialists domain.SpecialistRepository
}

func NewSpecialistService(specialists domain.SpecialistRepository) *SpecialistService {
	return &SpecialistService{specialists: specialists}
}

func (s *SpecialistService) Get(ctx context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
	return s.specialists.GetByID(ctx, id)
}

func (s *SpecialistService) ListBookable(ctx context.Context) ([]domain.SpecialistProfile, error) {
	return s.specialists.ListBookable(ctx)
}

func (s *SpecialistService) UpdateProfile(ctx context.Context, id uuid.UUID, upd SpecialistUpdate) (*domain.SpecialistProfile, error) {
	bio := strings.TrimSpace(upd.Bio)
	if len(bio) > maxBioLength {
		return nil, apperrors.ValidationError("bio is too long").WithField("max_length", maxBioLength)
	}
	if upd.HourlyRateCents <= 0 || upd.HourlyRateCents > maxHourlyRateCents {
		return nil, apperrors.ValidationError("hourly rate is out of range").WithField("hourly_rate_cents", upd.HourlyRateCents)
	}
	skills, err := normalizeSkills(upd.Skills)
	if err != nil {
		return nil, err
	}

	current, err := s.specialists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	current.Bio = bio
	current.Skills = skills
	current.HourlyRateCents = upd.HourlyRateCents
	current.Available = upd.Available
	return s.specialists.Upsert(ctx, *current)
}

func normalizeSkills(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, skill := range raw {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		if len(skill) > maxSkillLength {
			return nil, apperrors.ValidationError("skill is too long").WithField("skill", skill)
		}
		key := strings.ToLower(skill)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	if len(out) > maxSkills {
		return nil, apperrors.ValidationError("too many skills").WithField("max_skills", maxSkills)
	}
	return out, nil
}

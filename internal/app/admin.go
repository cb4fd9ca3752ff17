package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type PlatformStats struct {
	Profiles          map[domain.Role]int              `json:"profiles"`
	Appointments      map[domain.AppointmentStatus]int `json:"appointments"`
	ActiveMemberships int                              `json:"active_memberships"`
	RevenueCents      int64                            `json:"revenue_cents"`
}

// AdminService backs the admin dashboard.
type AdminService struct {
	profiles     domain.ProfileRepository
	specialists  domain.SpecialistRepository
	appointments domain.AppointmentRepository
	memberships  domain.MembershipRepository
	payments     domain.PaymentRepository
	roles        *RoleLookup
}

func NewAdminService(
	profiles domain.ProfileRepository,
	specialists domain.SpecialistRepository,
	appointments domain.AppointmentRepository,
	memberships domain.MembershipRepository,
	payments domain.PaymentRepository,
	roles *RoleLookup,
) *AdminService {
	return &AdminService{
		profiles:     profiles,
		specialists:  specialists,
		appointments: appointments,
		memberships:  memberships,
		payments:     payments,
		roles:        roles,
	}
}

// ListProfiles pages through profiles; RoleUndefined lists every role.
func (s *AdminService) ListProfiles(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error) {
	limit, offset = page(limit, offset)
	return s.profiles.List(ctx, role, limit, offset)
}

// SetRole assigns role to userID and announces it so open dashboards
// re-resolve. Admins cannot demote themselves.
func (s *AdminService) SetRole(ctx context.Context, adminID, userID uuid.UUID, role domain.Role) (*domain.Profile, error) {
	if !role.Defined() {
		return nil, apperrors.ValidationError("unknown role").WithField("role", string(role))
	}
	if adminID == userID && role != domain.RoleAdmin {
		return nil, apperrors.ValidationError("admins cannot change their own role")
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Role == role {
		return profile, nil
	}

	if err := s.profiles.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}

	if role == domain.RoleSpecialist {
		_, err := s.specialists.GetByID(ctx, userID)
		if errors.Is(err, domain.ErrSpecialistNotFound) {
			_, err = s.specialists.Upsert(ctx, domain.SpecialistProfile{ProfileID: userID, FullName: profile.FullName})
		}
		if err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "Role changed by admin", "admin_id", adminID, "user_id", userID, "from", profile.Role.String(), "to", role.String())
	s.roles.Announce(ctx, userID, role)
	profile.Role = role
	return profile, nil
}

func (s *AdminService) PendingSpecialists(ctx context.Context) ([]domain.SpecialistProfile, error) {
	return s.specialists.ListPendingVerification(ctx)
}

func (s *AdminService) VerifySpecialist(ctx context.Context, adminID, specialistID uuid.UUID, verified bool) error {
	if err := s.specialists.SetVerified(ctx, specialistID, verified); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Specialist verification changed", "admin_id", adminID, "specialist_id", specialistID, "verified", verified)
	return nil
}

func (s *AdminService) ListAppointments(ctx context.Context, status domain.AppointmentStatus, limit, offset int) ([]domain.Appointment, error) {
	limit, offset = page(limit, offset)
	return s.appointments.List(ctx, status, limit, offset)
}

// Stats gathers the dashboard counters concurrently.
func (s *AdminService) Stats(ctx context.Context) (*PlatformStats, error) {
	var stats PlatformStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		stats.Profiles, err = s.profiles.CountByRole(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.Appointments, err = s.appointments.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.ActiveMemberships, err = s.memberships.CountActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.RevenueCents, err = s.payments.SumSucceeded(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return min(limit, maxPageSize), max(offset, 0)
}

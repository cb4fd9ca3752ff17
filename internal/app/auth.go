package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	minPasswordLength = 8
	maxNameLength     = 120
)

type SignUpRequest struct {
	Email    string
	Password string
	// Role is optional; without it the user is onboarded later.
	Role     domain.Role
	FullName string
	Phone    string
	City     string
}

type OnboardingRequest struct {
	Role     domain.Role
	FullName string
	Phone    string
	City     string
}

// AuthService covers sign up, sign in, session refresh and onboarding.
type AuthService struct {
	auth        domain.AuthProvider
	profiles    domain.ProfileRepository
	specialists domain.SpecialistRepository
	roles       *RoleLookup
	clock       clockwork.Clock
}

func NewAuthService(auth domain.AuthProvider, profiles domain.ProfileRepository, specialists domain.SpecialistRepository, roles *RoleLookup, clock clockwork.Clock) *AuthService {
	return &AuthService{auth: auth, profiles: profiles, specialists: specialists, roles: roles, clock: clock}
}

// SignUp registers the account and, when a role was chosen, creates the
// profile straight away. The returned identity has no tokens if the provider
// requires email confirmation first.
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (*domain.Identity, *domain.Profile, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, nil, apperrors.ValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if req.Role != domain.RoleUndefined {
		if err := validateOnboarding(OnboardingRequest{Role: req.Role, FullName: req.FullName}); err != nil {
			return nil, nil, err
		}
	}

	ident, err := s.auth.SignUp(ctx, email, req.Password)
	if err != nil {
		return nil, nil, err
	}

	if req.Role == domain.RoleUndefined {
		return ident, nil, nil
	}

	profile, err := s.createProfile(ctx, ident, OnboardingRequest{Role: req.Role, FullName: req.FullName, Phone: req.Phone, City: req.City})
	if err != nil {
		return ident, nil, err
	}
	return ident, profile, nil
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperrors.ValidationError("password is required")
	}
	return s.auth.SignIn(ctx, normalized, password)
}

// Authenticate returns a usable identity for ident, refreshing the access
// token when it has expired.
func (s *AuthService) Authenticate(ctx context.Context, ident *domain.Identity) (*domain.Identity, error) {
	if ident == nil {
		return nil, domain.ErrSessionExpired
	}
	if !ident.Expired(s.clock.Now()) {
		return ident, nil
	}
	if ident.RefreshToken == "" {
		return nil, domain.ErrSessionExpired
	}

	refreshed, err := s.auth.Refresh(ctx, ident.RefreshToken)
	if err != nil {
		return nil, err
	}
	if refreshed.UserID != ident.UserID {
		return nil, domain.ErrSessionExpired
	}
	slog.DebugContext(ctx, "Refreshed session", "user_id", ident.UserID)
	return refreshed, nil
}

// SignOut revokes the access token. Provider failures are logged only; the
// local session is dropped regardless.
func (s *AuthService) SignOut(ctx context.Context, ident *domain.Identity) {
	if ident == nil || ident.AccessToken == "" {
		return
	}
	if err := s.auth.SignOut(ctx, ident.AccessToken); err != nil {
		slog.WarnContext(ctx, "Failed to revoke session", "user_id", ident.UserID, "error", err)
	}
}

// Onboard creates the profile of a signed-in user that has none yet and
// announces the role so pending dashboard guards resolve.
func (s *AuthService) Onboard(ctx context.Context, ident *domain.Identity, req OnboardingRequest) (*domain.Profile, error) {
	if err := validateOnboarding(req); err != nil {
		return nil, err
	}
	return s.createProfile(ctx, ident, req)
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	return s.profiles.GetByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, phone, city string) (*domain.Profile, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || len(fullName) > maxNameLength {
		return nil, apperrors.ValidationError("full name is required").WithField("full_name", fullName)
	}
	if err := s.profiles.Update(ctx, userID, fullName, strings.TrimSpace(phone), strings.TrimSpace(city)); err != nil {
		return nil, err
	}
	return s.profiles.GetByID(ctx, userID)
}

func (s *AuthService) createProfile(ctx context.Context, ident *domain.Identity, req OnboardingRequest) (*domain.Profile, error) {
	profile, err := s.profiles.Create(ctx, domain.Profile{
		ID:       ident.UserID,
		Role:     req.Role,
		FullName: strings.TrimSpace(req.FullName),
		Email:    ident.Email,
		Phone:    strings.TrimSpace(req.Phone),
		City:     strings.TrimSpace(req.City),
	})
	if errors.Is(err, domain.ErrProfileExists) {
		profile, err = s.repairSpecialist(ctx, ident.UserID, req.Role)
	}
	if err != nil {
		return nil, err
	}

	s.roles.Announce(ctx, profile.ID, profile.Role)
	slog.InfoContext(ctx, "Profile created", "user_id", profile.ID, "role", profile.Role.String())
	return profile, nil
}

// repairSpecialist completes a specialist onboarding whose profile row exists
// without its specialist row. Any other existing profile stays
// ErrProfileExists.
func (s *AuthService) repairSpecialist(ctx context.Context, userID uuid.UUID, role domain.Role) (*domain.Profile, error) {
	if role != domain.RoleSpecialist {
		return nil, domain.ErrProfileExists
	}
	existing, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing.Role != domain.RoleSpecialist {
		return nil, domain.ErrProfileExists
	}

	_, err = s.specialists.GetByID(ctx, userID)
	if err == nil {
		return nil, domain.ErrProfileExists
	}
	if !errors.Is(err, domain.ErrSpecialistNotFound) {
		return nil, err
	}

	if _, err := s.specialists.Upsert(ctx, domain.SpecialistProfile{ProfileID: userID, Available: true}); err != nil {
		return nil, fmt.Errorf("create specialist profile: %w", err)
	}
	slog.WarnContext(ctx, "Repaired specialist profile", "user_id", userID)
	return existing, nil
}

func validateOnboarding(req OnboardingRequest) error {
	if !req.Role.SelfAssignable() {
		return apperrors.ValidationError("role must be senior or specialist").WithField("role", string(req.Role))
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" || len(name) > maxNameLength {
		return apperrors.ValidationError("full name is required").WithField("full_name", req.FullName)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.ValidationError("invalid email address").WithField("email", raw)
	}
	return strings.ToLower(addr.Address), nil
}

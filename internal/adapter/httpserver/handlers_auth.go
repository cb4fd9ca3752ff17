package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/access"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) registerAuthRoutes(csrfMiddleware, rateLimiter echo.MiddlewareFunc) {
	s.echo.POST("/auth/signup", s.handleSignUp, rateLimiter)
	s.echo.POST("/auth/login", s.handleSignIn, rateLimiter)
	s.echo.POST("/auth/logout", s.handleLogout, s.requireSession, csrfMiddleware)
	s.echo.GET("/auth/session", s.handleSession, s.requireSession, csrfMiddleware)
	s.echo.PUT("/auth/profile", s.handleUpdateProfile, s.requireSession, csrfMiddleware)
	s.echo.POST("/onboarding/profile", s.handleOnboarding, s.requireSession, csrfMiddleware)
}

type signUpRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
	FullName string `json:"full_name" form:"full_name"`
	Phone    string `json:"phone" form:"phone"`
	City     string `json:"city" form:"city"`
}

type signInRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type profileRequest struct {
	Role     string `json:"role" form:"role"`
	FullName string `json:"full_name" form:"full_name"`
	Phone    string `json:"phone" form:"phone"`
	City     string `json:"city" form:"city"`
}

func (s *Server) handleLanding(c echo.Context) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return redirect(c, access.LoginPath)
	}
	role := s.lookupRole(c.Request().Context(), ident.UserID)
	return redirect(c, access.Target(ident, role))
}

func (s *Server) handleLoginPage(c echo.Context) error {
	if ident, err := s.currentIdentity(c); err == nil {
		if role := s.lookupRole(c.Request().Context(), ident.UserID); role.Defined() {
			return redirect(c, access.DashboardPath(role))
		}
	}
	return writeJSON(c, http.StatusOK, map[string]string{
		"status": "sign_in_required",
		"login":  "/auth/login",
		"signup": "/auth/signup",
	})
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req signUpRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	role, err := parseOptionalRole(req.Role)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	ident, profile, err := s.auth.SignUp(ctx, app.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		FullName: req.FullName,
		Phone:    req.Phone,
		City:     req.City,
	})
	if err != nil {
		return err
	}

	resp := map[string]any{
		"user_id":               ident.UserID,
		"email":                 ident.Email,
		"confirmation_required": ident.AccessToken == "",
	}
	if profile != nil {
		resp["role"] = string(profile.Role)
		resp["dashboard"] = access.DashboardPath(profile.Role)
	}
	if ident.AccessToken != "" {
		if err := s.saveIdentity(c, ident); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "User signed up", "user_id", ident.UserID, "role", role.String())
	return writeJSON(c, http.StatusCreated, resp)
}

func (s *Server) handleSignIn(c echo.Context) error {
	var req signInRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}
	if err := s.attempts.allowAccount(c, req.Email); err != nil {
		return err
	}

	ctx := c.Request().Context()
	ident, err := s.auth.SignIn(ctx, req.Email, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return apperrors.UnauthorizedError("invalid email or password")
	}
	if err != nil {
		return err
	}

	if err := s.saveIdentity(c, ident); err != nil {
		return err
	}

	role := s.lookupRole(ctx, ident.UserID)
	slog.InfoContext(ctx, "User signed in", "user_id", ident.UserID, "role", role.String())

	return writeJSON(c, http.StatusOK, sessionResponse{
		UserID:    ident.UserID,
		Email:     ident.Email,
		Role:      string(role),
		Dashboard: access.Target(ident, role),
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	ident, err := identityFrom(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	s.auth.SignOut(ctx, ident)
	s.clearSession(c)

	slog.InfoContext(ctx, "User signed out", "user_id", ident.UserID)
	return writeJSON(c, http.StatusOK, map[string]string{"redirect_to": access.LoginPath})
}

func (s *Server) handleSession(c echo.Context) error {
	ident, err := identityFrom(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	resp := sessionResponse{UserID: ident.UserID, Email: ident.Email}

	profile, err := s.auth.Profile(ctx, ident.UserID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		// Signed in but not onboarded yet.
	case err != nil:
		return err
	default:
		p := newProfileResponse(profile)
		resp.Profile = &p
		resp.Role = string(profile.Role)
		resp.Dashboard = access.DashboardPath(profile.Role)
	}

	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleOnboarding(c echo.Context) error {
	ident, err := identityFrom(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}
	role, err := parseOptionalRole(req.Role)
	if err != nil {
		return err
	}

	profile, err := s.auth.Onboard(c.Request().Context(), ident, app.OnboardingRequest{
		Role:     role,
		FullName: req.FullName,
		Phone:    req.Phone,
		City:     req.City,
	})
	if err != nil {
		return err
	}

	return writeJSON(c, http.StatusCreated, map[string]any{
		"profile":   newProfileResponse(profile),
		"dashboard": access.DashboardPath(profile.Role),
	})
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	profile, err := s.auth.UpdateProfile(c.Request().Context(), userID, req.FullName, req.Phone, req.City)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newProfileResponse(profile))
}

func parseOptionalRole(raw string) (domain.Role, error) {
	if raw == "" {
		return domain.RoleUndefined, nil
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		return domain.RoleUndefined, apperrors.ValidationError("unknown role").WithField("role", raw)
	}
	return role, nil
}

func redirect(c echo.Context, path string) error {
	if err := c.Redirect(http.StatusFound, path); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

package httpserver

import (
	"net/http"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type setRoleRequest struct {
	Role string `json:"role"`
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

func (s *Server) handleAdminProfiles(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	var role domain.Role
	if raw := c.QueryParam("role"); raw != "" {
		if role, err = domain.ParseRole(raw); err != nil {
			return apperrors.ValidationError("unknown role").WithField("role", raw)
		}
	}

	profiles, err := s.admin.ListProfiles(c.Request().Context(), role, limit, offset)
	if err != nil {
		return apperrors.InternalError("failed to list profiles", err)
	}
	return writeJSON(c, http.StatusOK, newProfileResponses(profiles))
}

func (s *Server) handleAdminSetRole(c echo.Context) error {
	adminID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	userID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	var req setRoleRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	profile, err := s.admin.SetRole(c.Request().Context(), adminID, userID, domain.Role(req.Role))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newProfileResponse(profile))
}

func (s *Server) handleAdminPendingSpecialists(c echo.Context) error {
	pending, err := s.admin.PendingSpecialists(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list pending specialists", err)
	}
	return writeJSON(c, http.StatusOK, newSpecialistResponses(pending))
}

func (s *Server) handleAdminVerifySpecialist(c echo.Context) error {
	adminID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	specialistID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	var req verifyRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	if err := s.admin.VerifySpecialist(c.Request().Context(), adminID, specialistID, req.Verified); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"specialist_id": specialistID, "verified": req.Verified})
}

func (s *Server) handleAdminAppointments(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	status := domain.AppointmentStatus(c.QueryParam("status"))
	appts, err := s.admin.ListAppointments(c.Request().Context(), status, limit, offset)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newAppointmentResponses(appts))
}

func (s *Server) handleAdminStats(c echo.Context) error {
	stats, err := s.admin.Stats(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to compute stats", err)
	}
	return writeJSON(c, http.StatusOK, stats)
}

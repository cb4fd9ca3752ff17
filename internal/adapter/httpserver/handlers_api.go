package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type bookRequest struct {
	SpecialistID    string    `json:"specialist_id"`
	Issue           string    `json:"issue"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type matchRequest struct {
	Issue string `json:"issue"`
}

type specialistProfileRequest struct {
	Bio             string   `json:"bio"`
	Skills          []string `json:"skills"`
	HourlyRateCents int64    `json:"hourly_rate_cents"`
	Available       bool     `json:"available"`
}

func (s *Server) handleSeniorAppointments(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	appts, err := s.booking.ListForSenior(c.Request().Context(), userID)
	if err != nil {
		return apperrors.InternalError("failed to load appointments", err)
	}
	return writeJSON(c, http.StatusOK, newAppointmentResponses(appts))
}

func (s *Server) handleBookAppointment(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var req bookRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}
	specialistID, err := uuid.Parse(req.SpecialistID)
	if err != nil {
		return apperrors.ValidationError("invalid specialist id").WithField("specialist_id", req.SpecialistID)
	}

	appt, err := s.booking.Book(c.Request().Context(), userID, app.BookingRequest{
		SpecialistID:    specialistID,
		Issue:           req.Issue,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, newAppointmentResponse(appt))
}

func (s *Server) handleCancelAppointment(c echo.Context) error {
	return s.transitionAppointment(c, s.booking.Cancel)
}

func (s *Server) handleAcceptAppointment(c echo.Context) error {
	return s.transitionAppointment(c, s.booking.Accept)
}

func (s *Server) handleDeclineAppointment(c echo.Context) error {
	return s.transitionAppointment(c, s.booking.Decline)
}

func (s *Server) handleCompleteAppointment(c echo.Context) error {
	return s.transitionAppointment(c, s.booking.Complete)
}

type appointmentTransition func(ctx context.Context, actor, appointmentID uuid.UUID) (*domain.Appointment, error)

func (s *Server) transitionAppointment(c echo.Context, move appointmentTransition) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	appointmentID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	appt, err := move(c.Request().Context(), userID, appointmentID)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newAppointmentResponse(appt))
}

func (s *Server) handleAppointmentCheckout(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	appointmentID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	session, err := s.billing.CheckoutAppointment(c.Request().Context(), userID, appointmentID)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, checkoutResponse{SessionID: session.ID, URL: session.URL})
}

func (s *Server) handleMatch(c echo.Context) error {
	var req matchRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	candidates, err := s.matching.Match(c.Request().Context(), req.Issue)
	if err != nil {
		return err
	}
	if candidates == nil {
		candidates = []domain.MatchCandidate{}
	}
	return writeJSON(c, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) handleListSpecialists(c echo.Context) error {
	specialists, err := s.specialists.ListBookable(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to load specialists", err)
	}
	return writeJSON(c, http.StatusOK, newSpecialistResponses(specialists))
}

func (s *Server) handleGetSpecialist(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	specialist, err := s.specialists.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newSpecialistResponse(specialist))
}

func (s *Server) handleSpecialistAppointments(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	appts, err := s.booking.ListForSpecialist(c.Request().Context(), userID)
	if err != nil {
		return apperrors.InternalError("failed to load appointments", err)
	}
	return writeJSON(c, http.StatusOK, newAppointmentResponses(appts))
}

func (s *Server) handleGetSpecialistProfile(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	specialist, err := s.specialists.Get(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newSpecialistResponse(specialist))
}

func (s *Server) handleUpdateSpecialistProfile(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var req specialistProfileRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	specialist, err := s.specialists.UpdateProfile(c.Request().Context(), userID, app.SpecialistUpdate{
		Bio:             req.Bio,
		Skills:          req.Skills,
		HourlyRateCents: req.HourlyRateCents,
		Available:       req.Available,
	})
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newSpecialistResponse(specialist))
}

// bindRequest decodes the body and reports malformed input as a validation
// error instead of echo's plain HTTP error.
func bindRequest(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	return nil
}

func writeJSON(c echo.Context, status int, v any) error {
	if err := c.JSON(status, v); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func idParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithField(name, raw)
	}
	return id, nil
}

// pageParams reads limit/offset query parameters with sane bounds.
func pageParams(c echo.Context) (int, int, error) {
	limit, offset := defaultPageSize, 0
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, apperrors.ValidationError("invalid limit").WithField("limit", raw)
		}
		limit = min(v, maxPageSize)
	}
	if raw := c.QueryParam("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, apperrors.ValidationError("invalid offset").WithField("offset", raw)
		}
		offset = v
	}
	return limit, offset, nil
}

package httpserver

import (
	"errors"
	"net/http"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

type seniorDashboard struct {
	Profile      profileResponse       `json:"profile"`
	Appointments []appointmentResponse `json:"appointments"`
	Unread       int                   `json:"unread_messages"`
	Membership   *membershipResponse   `json:"membership,omitempty"`
}

type specialistDashboard struct {
	Profile      profileResponse       `json:"profile"`
	Specialist   specialistResponse    `json:"specialist"`
	Appointments []appointmentResponse `json:"appointments"`
	Unread       int                   `json:"unread_messages"`
}

type adminDashboard struct {
	Profile            profileResponse      `json:"profile"`
	Stats              *app.PlatformStats   `json:"stats"`
	PendingSpecialists []specialistResponse `json:"pending_specialists"`
}

func (s *Server) handleSeniorDashboard(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var (
		profile *domain.Profile
		appts   []domain.Appointment
		unread  int
		member  *domain.Membership
	)
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		profile, err = s.auth.Profile(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		appts, err = s.booking.ListForSenior(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		unread, err = s.messaging.UnreadCount(ctx, userID)
		return err
	})
	g.Go(func() error {
		m, err := s.billing.Membership(ctx, userID)
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil
		}
		member = m
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	resp := seniorDashboard{
		Profile:      newProfileResponse(profile),
		Appointments: newAppointmentResponses(appts),
		Unread:       unread,
	}
	if member != nil {
		m := newMembershipResponse(member, s.clock.Now())
		resp.Membership = &m
	}
	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleSpecialistDashboard(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var (
		profile    *domain.Profile
		specialist *domain.SpecialistProfile
		appts      []domain.Appointment
		unread     int
	)
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		profile, err = s.auth.Profile(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		specialist, err = s.specialists.Get(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		appts, err = s.booking.ListForSpecialist(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		unread, err = s.messaging.UnreadCount(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return writeJSON(c, http.StatusOK, specialistDashboard{
		Profile:      newProfileResponse(profile),
		Specialist:   newSpecialistResponse(specialist),
		Appointments: newAppointmentResponses(appts),
		Unread:       unread,
	})
}

func (s *Server) handleAdminDashboard(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	profile, err := s.auth.Profile(ctx, userID)
	if err != nil {
		return err
	}
	stats, err := s.admin.Stats(ctx)
	if err != nil {
		return err
	}
	pending, err := s.admin.PendingSpecialists(ctx)
	if err != nil {
		return err
	}

	return writeJSON(c, http.StatusOK, adminDashboard{
		Profile:            newProfileResponse(profile),
		Stats:              stats,
		PendingSpecialists: newSpecialistResponses(pending),
	})
}

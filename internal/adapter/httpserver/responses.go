package httpserver

import (
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
)

type profileResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Role:      string(p.Role),
		FullName:  p.FullName,
		Email:     p.Email,
		Phone:     p.Phone,
		City:      p.City,
		CreatedAt: p.CreatedAt,
	}
}

func newProfileResponses(ps []domain.Profile) []profileResponse {
	out := make([]profileResponse, 0, len(ps))
	for i := range ps {
		out = append(out, newProfileResponse(&ps[i]))
	}
	return out
}

type specialistResponse struct {
	ID              uuid.UUID `json:"id"`
	FullName        string    `json:"full_name"`
	Bio             string    `json:"bio"`
	Skills          []string  `json:"skills"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	Verified        bool      `json:"verified"`
	Available       bool      `json:"available"`
	Rating          float64   `json:"rating"`
}

func newSpecialistResponse(s *domain.SpecialistProfile) specialistResponse {
	skills := s.Skills
	if skills == nil {
		skills = []string{}
	}
	return specialistResponse{
		ID:              s.ProfileID,
		FullName:        s.FullName,
		Bio:             s.Bio,
		Skills:          skills,
		HourlyRateCents: s.HourlyRateCents,
		Verified:        s.Verified,
		Available:       s.Available,
		Rating:          s.Rating,
	}
}

func newSpecialistResponses(ss []domain.SpecialistProfile) []specialistResponse {
	out := make([]specialistResponse, 0, len(ss))
	for i := range ss {
		out = append(out, newSpecialistResponse(&ss[i]))
	}
	return out
}

type appointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	SeniorID        uuid.UUID `json:"senior_id"`
	SpecialistID    uuid.UUID `json:"specialist_id"`
	Issue           string    `json:"issue"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Status          string    `json:"status"`
	Paid            bool      `json:"paid"`
}

func newAppointmentResponse(a *domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		SeniorID:        a.SeniorID,
		SpecialistID:    a.SpecialistID,
		Issue:           a.Issue,
		StartsAt:        a.StartsAt,
		EndsAt:          a.EndsAt(),
		DurationMinutes: a.DurationMinutes,
		PriceCents:      a.PriceCents,
		Status:          string(a.Status),
		Paid:            a.Paid,
	}
}

func newAppointmentResponses(as []domain.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(as))
	for i := range as {
		out = append(out, newAppointmentResponse(&as[i]))
	}
	return out
}

type membershipResponse struct {
	Plan              string     `json:"plan,omitempty"`
	Status            string     `json:"status"`
	Active            bool       `json:"active"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

func newMembershipResponse(m *domain.Membership, now time.Time) membershipResponse {
	resp := membershipResponse{
		Plan:              string(m.Plan),
		Status:            string(m.Status),
		Active:            m.Active(now),
		CancelAtPeriodEnd: m.CancelAtPeriodEnd,
	}
	if !m.CurrentPeriodEnd.IsZero() {
		end := m.CurrentPeriodEnd
		resp.CurrentPeriodEnd = &end
	}
	return resp
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type sessionResponse struct {
	UserID    uuid.UUID        `json:"user_id"`
	Email     string           `json:"email"`
	Role      string           `json:"role"`
	Dashboard string           `json:"dashboard,omitempty"`
	Profile   *profileResponse `json:"profile,omitempty"`
}

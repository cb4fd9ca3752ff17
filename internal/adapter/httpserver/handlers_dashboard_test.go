package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSeniorDashboard(t *testing.T) {
	env := newTestEnv(t, withRoles(fixedRole(domain.RoleSenior)))
	ident := testIdentity()
	env.booking.listForSeniorFn = func(_ context.Context, seniorID uuid.UUID) ([]domain.Appointment, error) {
		return []domain.Appointment{*testAppointment(seniorID, uuid.New(), domain.AppointmentConfirmed)}, nil
	}
	env.messaging.unreadCountFn = func(context.Context, uuid.UUID) (int, error) { return 3, nil }
	env.billing.membershipFn = func(_ context.Context, userID uuid.UUID) (*domain.Membership, error) {
		return &domain.Membership{
			UserID:           userID,
			Plan:             domain.PlanPremium,
			Status:           domain.MembershipActive,
			CurrentPeriodEnd: testNow.Add(30 * 24 * time.Hour),
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/senior/dashboard", nil)
	env.signIn(t, req, ident)
	rec := env.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body seniorDashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Appointments, 1)
	assert.Equal(t, 3, body.Unread)
	require.NotNil(t, body.Membership)
	assert.True(t, body.Membership.Active)
	assert.Equal(t, "premium", body.Membership.Plan)
}

func TestHandleSeniorDashboard_NoMembership(t *testing.T) {
	env := newTestEnv(t, withRoles(fixedRole(domain.RoleSenior)))

	req := httptest.NewRequest(http.MethodGet, "/senior/dashboard", nil)
	env.signIn(t, req, testIdentity())
	rec := env.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"membership"`)
	assert.Contains(t, rec.Body.String(), `"appointments":[]`)
}

func TestHandleSeniorDashboard_DBError(t *testing.T) {
	env := newTestEnv(t, withRoles(fixedRole(domain.RoleSenior)))
	env.booking.listForSeniorFn = func(context.Context, uuid.UUID) ([]domain.Appointment, error) {
		return nil, errors.New("connection reset")
	}

	req := httptest.NewRequest(http.MethodGet, "/senior/dashboard", nil)
	env.signIn(t, req, testIdentity())
	rec := env.serve(req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestHandleSpecialistDashboard(t *testing.T) {
	env := newTestEnv(t, withRoles(fixedRole(domain.RoleSpecialist)))
	ident := testIdentity()
	env.specialists.getFn = func(_ context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
		return &domain.SpecialistProfile{ProfileID: id, Skills: []string{"tablets"}, Verified: true}, nil
	}
	env.booking.listForSpecialistFn = func(_ context.Context, specialistID uuid.UUID) ([]domain.Appointment, error) {
		return []domain.Appointment{
			*testAppointment(uuid.New(), specialistID, domain.AppointmentPending),
			*testAppointment(uuid.New(), specialistID, domain.AppointmentConfirmed),
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/specialist/dashboard", nil)
	env.signIn(t, req, ident)
	rec := env.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body specialistDashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ident.UserID, body.Specialist.ID)
	assert.True(t, body.Specialist.Verified)
	assert.Len(t, body.Appointments, 2)
}

func TestHandleAdminDashboard(t *testing.T) {
	env := newTestEnv(t, withRoles(fixedRole(domain.RoleAdmin)))
	env.admin.statsFn = func(context.Context) (*app.PlatformStats, error) {
		return &app.PlatformStats{
			Profiles:          map[domain.Role]int{domain.RoleSenior: 10, domain.RoleSpecialist: 4},
			ActiveMemberships: 2,
			RevenueCents:      90000,
		}, nil
	}
	env.admin.pendingFn = func(context.Context) ([]domain.SpecialistProfile, error) {
		return []domain.SpecialistProfile{{ProfileID: uuid.New(), FullName: "New Helper"}}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	env.signIn(t, req, testIdentity())
	rec := env.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, string(body["stats"]), `"revenue_cents":90000`)
	assert.Contains(t, string(body["pending_specialists"]), "New Helper")
}

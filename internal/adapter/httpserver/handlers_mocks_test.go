package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/config"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var errNotImplemented = errors.New("not implemented")

// --- Mock implementations ---

type mockAuth struct {
	signUpFn        func(ctx context.Context, req app.SignUpRequest) (*domain.Identity, *domain.Profile, error)
	signInFn        func(ctx context.Context, email, password string) (*domain.Identity, error)
	authenticateFn  func(ctx context.Context, ident *domain.Identity) (*domain.Identity, error)
	signOutFn       func(ctx context.Context, ident *domain.Identity)
	onboardFn       func(ctx context.Context, ident *domain.Identity, req app.OnboardingRequest) (*domain.Profile, error)
	profileFn       func(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	updateProfileFn func(ctx context.Context, userID uuid.UUID, fullName, phone, city string) (*domain.Profile, error)
}

func (m *mockAuth) SignUp(ctx context.Context, req app.SignUpRequest) (*domain.Identity, *domain.Profile, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, req)
	}
	return nil, nil, errNotImplemented
}

func (m *mockAuth) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, errNotImplemented
}

// Authenticate passes stored identities through unless overridden.
func (m *mockAuth) Authenticate(ctx context.Context, ident *domain.Identity) (*domain.Identity, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, ident)
	}
	return ident, nil
}

func (m *mockAuth) SignOut(ctx context.Context, ident *domain.Identity) {
	if m.signOutFn != nil {
		m.signOutFn(ctx, ident)
	}
}

func (m *mockAuth) Onboard(ctx context.Context, ident *domain.Identity, req app.OnboardingRequest) (*domain.Profile, error) {
	if m.onboardFn != nil {
		return m.onboardFn(ctx, ident, req)
	}
	return nil, errNotImplemented
}

func (m *mockAuth) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return &domain.Profile{ID: userID, FullName: "Test User", Email: "user@example.com"}, nil
}

func (m *mockAuth) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, phone, city string) (*domain.Profile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, fullName, phone, city)
	}
	return nil, errNotImplemented
}

type mockRoles struct {
	lookupFn func(ctx context.Context, userID uuid.UUID) (domain.Role, error)
	watchFn  func(userID uuid.UUID) (<-chan domain.Role, func())
}

func (m *mockRoles) LookupRole(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, userID)
	}
	return domain.RoleUndefined, nil
}

func (m *mockRoles) WatchRole(userID uuid.UUID) (<-chan domain.Role, func()) {
	if m.watchFn != nil {
		return m.watchFn(userID)
	}
	return nil, func() {}
}

func fixedRole(role domain.Role) *mockRoles {
	return &mockRoles{lookupFn: func(context.Context, uuid.UUID) (domain.Role, error) { return role, nil }}
}

type mockBooking struct {
	bookFn              func(ctx context.Context, seniorID uuid.UUID, req app.BookingRequest) (*domain.Appointment, error)
	getFn               func(ctx context.Context, userID, appointmentID uuid.UUID) (*domain.Appointment, error)
	listForSeniorFn     func(ctx context.Context, seniorID uuid.UUID) ([]domain.Appointment, error)
	listForSpecialistFn func(ctx context.Context, specialistID uuid.UUID) ([]domain.Appointment, error)
	acceptFn            func(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error)
	declineFn           func(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error)
	completeFn          func(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error)
	cancelFn            func(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.Appointment, error)
}

func (m *mockBooking) Book(ctx context.Context, seniorID uuid.UUID, req app.BookingRequest) (*domain.Appointment, error) {
	if m.bookFn != nil {
		return m.bookFn(ctx, seniorID, req)
	}
	return nil, errNotImplemented
}

func (m *mockBooking) Get(ctx context.Context, userID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, appointmentID)
	}
	return nil, domain.ErrAppointmentNotFound
}

func (m *mockBooking) ListForSenior(ctx context.Context, seniorID uuid.UUID) ([]domain.Appointment, error) {
	if m.listForSeniorFn != nil {
		return m.listForSeniorFn(ctx, seniorID)
	}
	return nil, nil
}

func (m *mockBooking) ListForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]domain.Appointment, error) {
	if m.listForSpecialistFn != nil {
		return m.listForSpecialistFn(ctx, specialistID)
	}
	return nil, nil
}

func (m *mockBooking) Accept(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, specialistID, appointmentID)
	}
	return nil, errNotImplemented
}

func (m *mockBooking) Decline(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	if m.declineFn != nil {
		return m.declineFn(ctx, specialistID, appointmentID)
	}
	return nil, errNotImplemented
}

func (m *mockBooking) Complete(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, specialistID, appointmentID)
	}
	return nil, errNotImplemented
}

func (m *mockBooking) Cancel(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, seniorID, appointmentID)
	}
	return nil, errNotImplemented
}

type mockMessaging struct {
	sendFn         func(ctx context.Context, senderID, recipientID uuid.UUID, body string) (*domain.Message, error)
	conversationFn func(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]domain.Message, error)
	markReadFn     func(ctx context.Context, userID, otherID uuid.UUID) (int64, error)
	unreadCountFn  func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockMessaging) Send(ctx context.Context, senderID, recipientID uuid.UUID, body string) (*domain.Message, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, senderID, recipientID, body)
	}
	return nil, errNotImplemented
}

func (m *mockMessaging) Conversation(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]domain.Message, error) {
	if m.conversationFn != nil {
		return m.conversationFn(ctx, userID, otherID, limit)
	}
	return nil, nil
}

func (m *mockMessaging) MarkRead(ctx context.Context, userID, otherID uuid.UUID) (int64, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, userID, otherID)
	}
	return 0, nil
}

func (m *mockMessaging) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.unreadCountFn != nil {
		return m.unreadCountFn(ctx, userID)
	}
	return 0, nil
}

type mockBilling struct {
	checkoutAppointmentFn func(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.CheckoutSession, error)
	checkoutMembershipFn  func(ctx context.Context, userID uuid.UUID, plan domain.MembershipPlan) (*domain.CheckoutSession, error)
	membershipFn          func(ctx context.Context, userID uuid.UUID) (*domain.Membership, error)
	cancelMembershipFn    func(ctx context.Context, userID uuid.UUID) (*domain.Membership, error)
	handleEventFn         func(ctx context.Context, evt *domain.PaymentEvent) error
}

func (m *mockBilling) CheckoutAppointment(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.CheckoutSession, error) {
	if m.checkoutAppointmentFn != nil {
		return m.checkoutAppointmentFn(ctx, seniorID, appointmentID)
	}
	return nil, errNotImplemented
}

func (m *mockBilling) CheckoutMembership(ctx context.Context, userID uuid.UUID, plan domain.MembershipPlan) (*domain.CheckoutSession, error) {
	if m.checkoutMembershipFn != nil {
		return m.checkoutMembershipFn(ctx, userID, plan)
	}
	return nil, errNotImplemented
}

func (m *mockBilling) Membership(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	if m.membershipFn != nil {
		return m.membershipFn(ctx, userID)
	}
	return nil, domain.ErrMembershipNotFound
}

func (m *mockBilling) CancelMembership(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	if m.cancelMembershipFn != nil {
		return m.cancelMembershipFn(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *mockBilling) HandleEvent(ctx context.Context, evt *domain.PaymentEvent) error {
	if m.handleEventFn != nil {
		return m.handleEventFn(ctx, evt)
	}
	return nil
}

type mockMatching struct {
	matchFn func(ctx context.Context, issue string) ([]domain.MatchCandidate, error)
}

func (m *mockMatching) Match(ctx context.Context, issue string) ([]domain.MatchCandidate, error) {
	if m.matchFn != nil {
		return m.matchFn(ctx, issue)
	}
	return nil, nil
}

type mockSpecialists struct {
	getFn          func(ctx context.Context, id uuid.UUID) (*domain.SpecialistProfile, error)
	listBookableFn func(ctx context.Context) ([]domain.SpecialistProfile, error)
	updateFn       func(ctx context.Context, id uuid.UUID, upd app.SpecialistUpdate) (*domain.SpecialistProfile, error)
}

func (m *mockSpecialists) Get(ctx context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &domain.SpecialistProfile{ProfileID: id}, nil
}

func (m *mockSpecialists) ListBookable(ctx context.Context) ([]domain.SpecialistProfile, error) {
	if m.listBookableFn != nil {
		return m.listBookableFn(ctx)
	}
	return nil, nil
}

func (m *mockSpecialists) UpdateProfile(ctx context.Context, id uuid.UUID, upd app.SpecialistUpdate) (*domain.SpecialistProfile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, upd)
	}
	return nil, errNotImplemented
}

type mockAdmin struct {
	listProfilesFn     func(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error)
	setRoleFn          func(ctx context.Context, adminID, userID uuid.UUID, role domain.Role) (*domain.Profile, error)
	pendingFn          func(ctx context.Context) ([]domain.SpecialistProfile, error)
	verifyFn           func(ctx context.Context, adminID, specialistID uuid.UUID, verified bool) error
	listAppointmentsFn func(ctx context.Context, status domain.AppointmentStatus, limit, offset int) ([]domain.Appointment, error)
	statsFn            func(ctx context.Context) (*app.PlatformStats, error)
}

func (m *mockAdmin) ListProfiles(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error) {
	if m.listProfilesFn != nil {
		return m.listProfilesFn(ctx, role, limit, offset)
	}
	return nil, nil
}

func (m *mockAdmin) SetRole(ctx context.Context, adminID, userID uuid.UUID, role domain.Role) (*domain.Profile, error) {
	if m.setRoleFn != nil {
		return m.setRoleFn(ctx, adminID, userID, role)
	}
	return nil, errNotImplemented
}

func (m *mockAdmin) PendingSpecialists(ctx context.Context) ([]domain.SpecialistProfile, error) {
	if m.pendingFn != nil {
		return m.pendingFn(ctx)
	}
	return nil, nil
}

func (m *mockAdmin) VerifySpecialist(ctx context.Context, adminID, specialistID uuid.UUID, verified bool) error {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, adminID, specialistID, verified)
	}
	return nil
}

func (m *mockAdmin) ListAppointments(ctx context.Context, status domain.AppointmentStatus, limit, offset int) ([]domain.Appointment, error) {
	if m.listAppointmentsFn != nil {
		return m.listAppointmentsFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockAdmin) Stats(ctx context.Context) (*app.PlatformStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &app.PlatformStats{}, nil
}

type mockWebhooks struct {
	parseFn func(payload []byte, header string) (*domain.PaymentEvent, error)
}

func (m *mockWebhooks) Parse(payload []byte, header string) (*domain.PaymentEvent, error) {
	if m.parseFn != nil {
		return m.parseFn(payload, header)
	}
	return nil, domain.ErrInvalidWebhook
}

type mockStream struct {
	serveFn func(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error
}

func (m *mockStream) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	if m.serveFn != nil {
		return m.serveFn(w, r, userID)
	}
	return nil
}

// --- Test helpers ---

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	srv         *Server
	clock       *clockwork.FakeClock
	registry    *prometheus.Registry
	auth        *mockAuth
	roles       *mockRoles
	booking     *mockBooking
	messaging   *mockMessaging
	billing     *mockBilling
	matching    *mockMatching
	specialists *mockSpecialists
	admin       *mockAdmin
	webhooks    *mockWebhooks
	stream      *mockStream
}

type envOption func(*testEnv)

func withRoles(r *mockRoles) envOption {
	return func(e *testEnv) { e.roles = r }
}

func withHealthChecks(checks ...HealthCheck) envOption {
	return func(e *testEnv) {
		if e.srv != nil {
			e.srv.healthChecks = checks
		}
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:       clockwork.NewFakeClockAt(testNow),
		registry:    prometheus.NewRegistry(),
		auth:        &mockAuth{},
		roles:       &mockRoles{},
		booking:     &mockBooking{},
		messaging:   &mockMessaging{},
		billing:     &mockBilling{},
		matching:    &mockMatching{},
		specialists: &mockSpecialists{},
		admin:       &mockAdmin{},
		webhooks:    &mockWebhooks{},
		stream:      &mockStream{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(env)
		}
	}

	cfg := &config.Config{
		AppEnv:          "test",
		Port:            "0",
		AppURL:          "http://localhost:8080",
		SessionSecret:   "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:   time.Hour,
		RoleGracePeriod: 3 * time.Second,
	}

	env.srv = NewServer(cfg, Services{
		Auth:        env.auth,
		Roles:       env.roles,
		Booking:     env.booking,
		Messaging:   env.messaging,
		Billing:     env.billing,
		Matching:    env.matching,
		Specialists: env.specialists,
		Admin:       env.admin,
		Webhooks:    env.webhooks,
		Stream:      env.stream,
	}, env.clock, Observability{
		Access: metrics.NewAccessMetrics(env.registry),
		HTTP:   metrics.NewHTTPMetrics(env.registry),
	}, nil)

	// Options that touch the server run again once it exists.
	for _, opt := range opts {
		if opt != nil {
			opt(env)
		}
	}
	return env
}

func testIdentity() *domain.Identity {
	return &domain.Identity{
		UserID:       uuid.New(),
		Email:        "user@example.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testNow.Add(time.Hour),
	}
}

// signIn attaches a session cookie carrying ident to req.
func (e *testEnv) signIn(t *testing.T, req *http.Request, ident *domain.Identity) {
	t.Helper()
	session := sessions.NewSession(e.srv.sessionStore, sessionName)
	opts := *e.srv.sessionStore.Options
	session.Options = &opts
	e.srv.writeIdentity(session.Values, ident)

	rec := httptest.NewRecorder()
	require.NoError(t, e.srv.sessionStore.Save(httptest.NewRequest(http.MethodGet, "/", nil), rec, session))
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
}

const testCSRFToken = "test-csrf-token-0123456789abcdef"

// withCSRF makes req pass the double-submit CSRF check.
func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

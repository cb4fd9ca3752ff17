package httpserver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/app"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/config"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

type authService interface {
	SignUp(ctx context.Context, req app.SignUpRequest) (*domain.Identity, *domain.Profile, error)
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	Authenticate(ctx context.Context, ident *domain.Identity) (*domain.Identity, error)
	SignOut(ctx context.Context, ident *domain.Identity)
	Onboard(ctx context.Context, ident *domain.Identity, req app.OnboardingRequest) (*domain.Profile, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, phone, city string) (*domain.Profile, error)
}

type bookingService interface {
	Book(ctx context.Context, seniorID uuid.UUID, req app.BookingRequest) (*domain.Appointment, error)
	Get(ctx context.Context, userID, appointmentID uuid.UUID) (*domain.Appointment, error)
	ListForSenior(ctx context.Context, seniorID uuid.UUID) ([]domain.Appointment, error)
	ListForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]domain.Appointment, error)
	Accept(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error)
	Decline(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error)
	Complete(ctx context.Context, specialistID, appointmentID uuid.UUID) (*domain.Appointment, error)
	Cancel(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.Appointment, error)
}

type messagingService interface {
	Send(ctx context.Context, senderID, recipientID uuid.UUID, body string) (*domain.Message, error)
	Conversation(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, userID, otherID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type billingService interface {
	CheckoutAppointment(ctx context.Context, seniorID, appointmentID uuid.UUID) (*domain.CheckoutSession, error)
	CheckoutMembership(ctx context.Context, userID uuid.UUID, plan domain.MembershipPlan) (*domain.CheckoutSession, error)
	Membership(ctx context.Context, userID uuid.UUID) (*domain.Membership, error)
	CancelMembership(ctx context.Context, userID uuid.UUID) (*domain.Membership, error)
	HandleEvent(ctx context.Context, evt *domain.PaymentEvent) error
}

type matchingService interface {
	Match(ctx context.Context, issue string) ([]domain.MatchCandidate, error)
}

type specialistService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.SpecialistProfile, error)
	ListBookable(ctx context.Context) ([]domain.SpecialistProfile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd app.SpecialistUpdate) (*domain.SpecialistProfile, error)
}

type adminService interface {
	ListProfiles(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error)
	SetRole(ctx context.Context, adminID, userID uuid.UUID, role domain.Role) (*domain.Profile, error)
	PendingSpecialists(ctx context.Context) ([]domain.SpecialistProfile, error)
	VerifySpecialist(ctx context.Context, adminID, specialistID uuid.UUID, verified bool) error
	ListAppointments(ctx context.Context, status domain.AppointmentStatus, limit, offset int) ([]domain.Appointment, error)
	Stats(ctx context.Context) (*app.PlatformStats, error)
}

type webhookParser interface {
	Parse(payload []byte, header string) (*domain.PaymentEvent, error)
}

type messageStream interface {
	Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error
}

// Services bundles the use cases the HTTP layer dispatches to.
type Services struct {
	Auth        authService
	Roles       domain.RoleSource
	Booking     bookingService
	Messaging   messagingService
	Billing     billingService
	Matching    matchingService
	Specialists specialistService
	Admin       adminService
	Webhooks    webhookParser
	Stream      messageStream
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	auth        authService
	roles       domain.RoleSource
	booking     bookingService
	messaging   messagingService
	billing     billingService
	matching    matchingService
	specialists specialistService
	admin       adminService
	webhooks    webhookParser
	stream      messageStream

	sessionStore   *sessions.CookieStore
	healthChecks   []HealthCheck
	startTime      time.Time
	accessMetrics  *metrics.AccessMetrics
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	attempts       *attemptLimiter

	// rolePollInterval re-reads the role while a guard waits, for instances
	// that miss the role-resolved broadcast.
	rolePollInterval time.Duration
}

// Observability groups the optional metrics wiring of the server.
type Observability struct {
	Access  *metrics.AccessMetrics
	HTTP    *metrics.HTTPMetrics
	Handler http.Handler
}

func NewServer(cfg *config.Config, svc Services, clock clockwork.Clock, obs Observability, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		clock:            clock,
		auth:             svc.Auth,
		roles:            svc.Roles,
		booking:          svc.Booking,
		messaging:        svc.Messaging,
		billing:          svc.Billing,
		matching:         svc.Matching,
		specialists:      svc.Specialists,
		admin:            svc.Admin,
		webhooks:         svc.Webhooks,
		stream:           svc.Stream,
		sessionStore:     setupSessionStore(cfg),
		healthChecks:     healthChecks,
		startTime:        clock.Now(),
		accessMetrics:    obs.Access,
		httpMetrics:      obs.HTTP,
		metricsHandler:   obs.Handler,
		rolePollInterval: defaultRolePollInterval,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// setupSessionStore signs and encrypts the cookie. It carries the provider's
// refresh token, so signing alone is not enough.
func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore(
		deriveKey(cfg.SessionSecret, "session-auth"),
		deriveKey(cfg.SessionSecret, "session-encrypt"),
	)
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}

func deriveKey(secret, purpose string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

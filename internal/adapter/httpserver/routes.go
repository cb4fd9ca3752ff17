package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled:    true,
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	csrfMiddleware := s.setupCSRFMiddleware()
	s.attempts = newAttemptLimiter(authIPRate, authIPBurst, signInAccountWindow, signInAccountBurst)

	s.echo.GET("/", s.handleLanding)
	s.echo.GET("/login", s.handleLoginPage)

	s.registerHealthRoutes()
	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	s.registerAuthRoutes(csrfMiddleware, s.attempts.byIP())
	s.registerDashboardRoutes()
	s.registerSeniorRoutes(csrfMiddleware)
	s.registerSpecialistRoutes(csrfMiddleware)
	s.registerMessageRoutes(csrfMiddleware)
	s.registerMembershipRoutes(csrfMiddleware)
	s.registerAdminRoutes(csrfMiddleware)

	s.echo.POST("/webhooks/stripe", s.handleStripeWebhook)
}

func (s *Server) registerDashboardRoutes() {
	s.echo.GET("/senior/dashboard", s.handleSeniorDashboard, s.requireRole(domain.RoleSenior))
	s.echo.GET("/specialist/dashboard", s.handleSpecialistDashboard, s.requireRole(domain.RoleSpecialist))
	s.echo.GET("/admin/dashboard", s.handleAdminDashboard, s.requireRole(domain.RoleAdmin))
}

func (s *Server) registerSeniorRoutes(csrfMiddleware echo.MiddlewareFunc) {
	g := s.echo.Group("/api/senior", s.requireRole(domain.RoleSenior))
	g.GET("/appointments", s.handleSeniorAppointments)
	g.POST("/appointments", s.handleBookAppointment, csrfMiddleware)
	g.POST("/appointments/:id/cancel", s.handleCancelAppointment, csrfMiddleware)
	g.POST("/appointments/:id/checkout", s.handleAppointmentCheckout, csrfMiddleware)
	g.POST("/match", s.handleMatch, csrfMiddleware)
	g.GET("/specialists", s.handleListSpecialists)
	g.GET("/specialists/:id", s.handleGetSpecialist)
}

func (s *Server) registerSpecialistRoutes(csrfMiddleware echo.MiddlewareFunc) {
	g := s.echo.Group("/api/specialist", s.requireRole(domain.RoleSpecialist))
	g.GET("/appointments", s.handleSpecialistAppointments)
	g.POST("/appointments/:id/accept", s.handleAcceptAppointment, csrfMiddleware)
	g.POST("/appointments/:id/decline", s.handleDeclineAppointment, csrfMiddleware)
	g.POST("/appointments/:id/complete", s.handleCompleteAppointment, csrfMiddleware)
	g.GET("/profile", s.handleGetSpecialistProfile)
	g.PUT("/profile", s.handleUpdateSpecialistProfile, csrfMiddleware)
}

func (s *Server) registerMessageRoutes(csrfMiddleware echo.MiddlewareFunc) {
	g := s.echo.Group("/api/messages", s.requireSession)
	g.GET("/unread", s.handleUnreadCount)
	g.GET("/:userID", s.handleConversation)
	g.POST("/:userID", s.handleSendMessage, csrfMiddleware)
	g.POST("/:userID/read", s.handleMarkRead, csrfMiddleware)

	s.echo.GET("/ws/messages", s.handleMessageStream, s.requireSession)
}

func (s *Server) registerMembershipRoutes(csrfMiddleware echo.MiddlewareFunc) {
	g := s.echo.Group("/api/membership", s.requireSession)
	g.GET("", s.handleMembership)
	g.POST("/checkout", s.handleMembershipCheckout, csrfMiddleware)
	g.POST("/cancel", s.handleCancelMembership, csrfMiddleware)
}

func (s *Server) registerAdminRoutes(csrfMiddleware echo.MiddlewareFunc) {
	g := s.echo.Group("/api/admin", s.requireRole(domain.RoleAdmin))
	g.GET("/profiles", s.handleAdminProfiles)
	g.PUT("/profiles/:id/role", s.handleAdminSetRole, csrfMiddleware)
	g.GET("/specialists/pending", s.handleAdminPendingSpecialists)
	g.PUT("/specialists/:id/verify", s.handleAdminVerifySpecialist, csrfMiddleware)
	g.GET("/appointments", s.handleAdminAppointments)
	g.GET("/stats", s.handleAdminStats)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

func (s *Server) setupCSRFMiddleware() echo.MiddlewareFunc {
	maxAge := int(s.config.SessionMaxAge.Seconds())

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:csrf_token",
		CookieName:     "csrf_token",
		CookiePath:     "/",
		CookieMaxAge:   maxAge,
		CookieHTTPOnly: true,
		CookieSecure:   s.config.IsProduction(),
		CookieSameSite: http.SameSiteStrictMode,
	})
}

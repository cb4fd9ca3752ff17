package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/access"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const defaultRolePollInterval = 500 * time.Millisecond

type navigation struct {
	path    string
	replace bool
}

// recordingNavigator captures the resolver's navigation so the handler can
// turn it into a response after the decision is made.
type recordingNavigator struct {
	mu  sync.Mutex
	nav *navigation
}

func (n *recordingNavigator) GoTo(path string) {
	n.record(navigation{path: path})
}

func (n *recordingNavigator) Replace(path string) {
	n.record(navigation{path: path, replace: true})
}

func (n *recordingNavigator) record(nav navigation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nav == nil {
		n.nav = &nav
	}
}

func (n *recordingNavigator) result() (navigation, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nav == nil {
		return navigation{}, false
	}
	return *n.nav, true
}

// requireRole admits the request only once the caller's role is known to be
// required. Each request mounts its own resolver; a request that is still
// waiting for the role holds until the role arrives or the grace period
// expires.
func (s *Server) requireRole(required domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := s.clock.Now()
			nav := &recordingNavigator{}
			resolver := access.NewResolver(required, nav, s.clock, access.WithGracePeriod(s.config.RoleGracePeriod))
			defer resolver.Close()

			resolver.Update(access.Inputs{SessionLoading: true})

			ident, err := s.currentIdentity(c)
			if err != nil {
				if !errors.Is(err, errNoSession) {
					slog.InfoContext(c.Request().Context(), "Session rejected", "error", err)
					s.clearSession(c)
				}
				resolver.Update(access.Inputs{})
				return s.finishGuard(c, resolver, nav, required, started, next)
			}
			s.bindIdentity(c, ident)
			ctx := c.Request().Context()

			// Watch before the first lookup so a role announced in between is not lost.
			updates, stop := s.roles.WatchRole(ident.UserID)
			defer stop()

			state := resolver.Update(access.Inputs{Session: ident, Role: s.lookupRole(ctx, ident.UserID)})
			if state == access.AwaitingRole {
				if err := s.awaitRole(ctx, resolver, ident, updates); err != nil {
					s.observeGuard(required, metrics.OutcomeAborted, started)
					slog.DebugContext(ctx, "Role guard aborted", "required_role", required.String(), "error", err)
					return nil
				}
			}
			return s.finishGuard(c, resolver, nav, required, started, next)
		}
	}
}

func (s *Server) awaitRole(ctx context.Context, resolver *access.Resolver, ident *domain.Identity, updates <-chan domain.Role) error {
	var poll <-chan time.Time
	if s.rolePollInterval > 0 {
		ticker := s.clock.NewTicker(s.rolePollInterval)
		defer ticker.Stop()
		poll = ticker.Chan()
	}

	for {
		select {
		case <-resolver.Done():
			return nil
		case role, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			resolver.Update(access.Inputs{Session: ident, Role: role})
		case <-poll:
			resolver.Update(access.Inputs{Session: ident, Role: s.lookupRole(ctx, ident.UserID)})
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// lookupRole treats a failed lookup like one that has not completed yet; the
// grace period decides what happens next.
func (s *Server) lookupRole(ctx context.Context, userID uuid.UUID) domain.Role {
	role, err := s.roles.LookupRole(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Role lookup failed", "user_id", userID, "error", err)
		return domain.RoleUndefined
	}
	return role
}

func (s *Server) finishGuard(c echo.Context, resolver *access.Resolver, nav *recordingNavigator, required domain.Role, started time.Time, next echo.HandlerFunc) error {
	switch resolver.State() {
	case access.Authorized:
		s.observeGuard(required, metrics.OutcomeAuthorized, started)
		return next(c)
	case access.Redirecting:
		s.observeGuard(required, guardOutcome(resolver.Err()), started)
		to, ok := nav.result()
		if !ok {
			return apperrors.InternalError("role guard redirected without navigation", nil)
		}
		return writeNavigation(c, to)
	default:
		return apperrors.InternalError("role guard undecided", nil).WithField("state", resolver.State().String())
	}
}

func guardOutcome(err error) string {
	switch {
	case errors.Is(err, access.ErrRoleMismatch):
		return metrics.OutcomeMismatch
	case errors.Is(err, access.ErrRoleLookupFailed):
		return metrics.OutcomeLookupFailed
	default:
		return metrics.OutcomeLogin
	}
}

func (s *Server) observeGuard(required domain.Role, outcome string, started time.Time) {
	if s.accessMetrics == nil {
		return
	}
	s.accessMetrics.Decisions.WithLabelValues(required.String(), outcome).Inc()
	s.accessMetrics.WaitDuration.Observe(s.clock.Since(started).Seconds())
}

// writeNavigation renders a GoTo as 302 and a Replace as 303 that must not
// be cached. Script clients get the destination as JSON instead.
func writeNavigation(c echo.Context, nav navigation) error {
	if wantsJSON(c.Request()) {
		status := http.StatusUnauthorized
		if nav.replace {
			status = http.StatusForbidden
		}
		if err := c.JSON(status, map[string]string{"redirect_to": nav.path}); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}

	status := http.StatusFound
	if nav.replace {
		c.Response().Header().Set("Cache-Control", "no-store")
		status = http.StatusSeeOther
	}
	if err := c.Redirect(status, nav.path); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

package httpserver

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/correlation"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Session keys
const (
	sessionName            = "care-session"
	sessionKeyUserID       = "user_id"
	sessionKeyEmail        = "email"
	sessionKeyAccessToken  = "access_token"
	sessionKeyRefreshToken = "refresh_token"
	sessionKeyExpiresAt    = "expires_at"
)

// Echo context keys
const (
	ctxKeyIdentity = "identity"
	ctxKeyUserID   = "userID"
)

var errNoSession = errors.New("no session")

// loadIdentity reads the identity stored in the session cookie. It does not
// talk to the auth provider.
func (s *Server) loadIdentity(c echo.Context) (*domain.Identity, error) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return nil, errNoSession
	}

	rawID, ok := session.Values[sessionKeyUserID].(string)
	if !ok {
		return nil, errNoSession
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errNoSession
	}

	ident := &domain.Identity{UserID: userID}
	ident.Email, _ = session.Values[sessionKeyEmail].(string)
	ident.AccessToken, _ = session.Values[sessionKeyAccessToken].(string)
	ident.RefreshToken, _ = session.Values[sessionKeyRefreshToken].(string)
	if exp, ok := session.Values[sessionKeyExpiresAt].(int64); ok && exp > 0 {
		ident.ExpiresAt = time.Unix(exp, 0).UTC()
	}
	return ident, nil
}

// saveIdentity starts a fresh session for ident. The old cookie is expired
// first so a pre-login session ID can never be promoted.
func (s *Server) saveIdentity(c echo.Context, ident *domain.Identity) error {
	if old, err := s.sessionStore.Get(c.Request(), sessionName); err == nil && !old.IsNew {
		old.Options.MaxAge = -1
		if err := old.Save(c.Request(), c.Response().Writer); err != nil {
			return apperrors.InternalError("failed to invalidate old session", err)
		}
	}

	session, err := s.sessionStore.New(c.Request(), sessionName)
	if err != nil && session == nil {
		return apperrors.InternalError("failed to create new session", err)
	}
	s.writeIdentity(session.Values, ident)
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}
	return nil
}

// refreshIdentity overwrites the token fields of the current session.
func (s *Server) refreshIdentity(c echo.Context, ident *domain.Identity) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return apperrors.InternalError("failed to load session", err)
	}
	s.writeIdentity(session.Values, ident)
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}
	return nil
}

func (s *Server) writeIdentity(values map[any]any, ident *domain.Identity) {
	values[sessionKeyUserID] = ident.UserID.String()
	values[sessionKeyEmail] = ident.Email
	values[sessionKeyAccessToken] = ident.AccessToken
	values[sessionKeyRefreshToken] = ident.RefreshToken
	var exp int64
	if !ident.ExpiresAt.IsZero() {
		exp = ident.ExpiresAt.Unix()
	}
	values[sessionKeyExpiresAt] = exp
}

func (s *Server) clearSession(c echo.Context) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil && session == nil {
			slog.Error("Failed to create session for logout", "error", err)
			return
		}
	}
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		slog.Error("Failed to expire session", "error", err)
	}
}

// currentIdentity returns a usable identity, refreshing expired tokens and
// persisting the result. Errors mean the caller has no valid session.
func (s *Server) currentIdentity(c echo.Context) (*domain.Identity, error) {
	stored, err := s.loadIdentity(c)
	if err != nil {
		return nil, err
	}

	ident, err := s.auth.Authenticate(c.Request().Context(), stored)
	if err != nil {
		return nil, err
	}
	if ident.AccessToken != stored.AccessToken {
		if err := s.refreshIdentity(c, ident); err != nil {
			return nil, err
		}
	}
	return ident, nil
}

func (s *Server) bindIdentity(c echo.Context, ident *domain.Identity) {
	c.Set(ctxKeyIdentity, ident)
	c.Set(ctxKeyUserID, ident.UserID)
	ctx := correlation.WithUserID(c.Request().Context(), ident.UserID.String())
	c.SetRequest(c.Request().WithContext(ctx))
}

// requireSession rejects requests without a valid session with 401.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, err := s.currentIdentity(c)
		if err != nil {
			if !errors.Is(err, errNoSession) {
				slog.InfoContext(c.Request().Context(), "Session rejected", "error", err)
				s.clearSession(c)
			}
			return apperrors.UnauthorizedError("sign in required")
		}
		s.bindIdentity(c, ident)
		return next(c)
	}
}

func identityFrom(c echo.Context) (*domain.Identity, error) {
	ident, ok := c.Get(ctxKeyIdentity).(*domain.Identity)
	if !ok || ident == nil {
		return nil, apperrors.InternalError("missing identity in context", nil)
	}
	return ident, nil
}

func userIDFrom(c echo.Context) (uuid.UUID, error) {
	userID, ok := c.Get(ctxKeyUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.InternalError("invalid user ID in context", nil)
	}
	return userID, nil
}

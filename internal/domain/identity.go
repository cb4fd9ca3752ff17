package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity is the session payload issued by the auth provider.
type Identity struct {
	UserID       uuid.UUID
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is no longer valid at now.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// AuthProvider is the external session provider.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*Identity, error)
	GetUser(ctx context.Context, accessToken string) (*Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}

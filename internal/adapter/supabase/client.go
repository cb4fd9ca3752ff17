// Package supabase implements domain.AuthProvider against the Supabase Auth
// (GoTrue) REST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	serviceName     = "supabase"
	httpCallTimeout = 10 * time.Second
	maxErrorBody    = 512
)

type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	clock   clockwork.Clock
	policy  retry.Policy
	metrics *metrics.ExternalMetrics
}

var _ domain.AuthProvider = (*Client)(nil)

// NewClient creates a GoTrue client. m may be nil.
func NewClient(baseURL, anonKey string, clock clockwork.Clock, m *metrics.ExternalMetrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: httpCallTimeout},
		clock:   clock,
		policy:  retry.DefaultHTTPPolicy,
		metrics: m,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`

	// Signup with email confirmation enabled returns the bare user.
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	var resp sessionResponse
	err := c.call(ctx, http.MethodPost, "/auth/v1/signup", "", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, mapAuthError("sign up", err)
	}
	return c.identity(resp)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	var resp sessionResponse
	err := c.call(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, mapAuthError("sign in", err)
	}
	return c.identity(resp)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Identity, error) {
	var resp sessionResponse
	err := c.call(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", map[string]string{"refresh_token": refreshToken}, &resp)
	if err != nil {
		return nil, mapAuthError("refresh", err)
	}
	return c.identity(resp)
}

// GetUser validates accessToken and returns the identity it belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	var resp userResponse
	if err := c.call(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &resp); err != nil {
		return nil, mapAuthError("get user", err)
	}
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return nil, fmt.Errorf("supabase returned invalid user id %q: %w", resp.ID, err)
	}
	return &domain.Identity{UserID: id, Email: resp.Email, AccessToken: accessToken}, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.call(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		return mapAuthError("sign out", err)
	}
	return nil
}

func (c *Client) identity(resp sessionResponse) (*domain.Identity, error) {
	rawID, email := resp.User.ID, resp.User.Email
	if rawID == "" {
		rawID, email = resp.ID, resp.Email
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("supabase returned invalid user id %q: %w", rawID, err)
	}

	ident := &domain.Identity{
		UserID:       id,
		Email:        email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresAt > 0:
		ident.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		ident.ExpiresAt = c.clock.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return ident, nil
}

func mapAuthError(op string, err error) error {
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			if op == "sign up" {
				return fmt.Errorf("supabase %s rejected: %w", op, err)
			}
			return domain.ErrInvalidCredentials
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.ErrSessionExpired
		}
	}
	return fmt.Errorf("supabase %s failed: %w", op, err)
}

func (c *Client) call(ctx context.Context, method, path, bearer string, body, out any) error {
	start := c.clock.Now()
	err := retry.DoVoid(ctx, c.policy, retry.ClassifyHTTP, func() error {
		return c.do(ctx, method, path, bearer, body, out)
	})
	c.metrics.ObserveCall(serviceName, c.clock.Since(start).Seconds(), err)
	return err
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &retry.StatusError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package httpserver

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry = 5 * time.Minute

	// Per client IP on every auth route.
	authIPRate  = 0.5
	authIPBurst = 5

	// Per account on sign-in, whichever IPs the attempts come from.
	signInAccountWindow = 15 * time.Minute
	signInAccountBurst  = 5
)

// attemptLimiter throttles authentication attempts twice: by client IP, and
// for sign-in by the normalized account email so a password spray spread
// across many IPs still runs into the account's budget.
type attemptLimiter struct {
	perIP      middleware.RateLimiterStore
	perAccount middleware.RateLimiterStore
	retryIP    time.Duration
	retryAcct  time.Duration
}

func newAttemptLimiter(ipRate float64, ipBurst int, accountWindow time.Duration, accountBurst int) *attemptLimiter {
	accountRate := rate.Limit(float64(accountBurst) / accountWindow.Seconds())
	retryIP := rateLimiterExpiry
	if ipRate > 0 {
		retryIP = time.Duration(float64(time.Second) / ipRate)
	}
	return &attemptLimiter{
		perIP:      newMemoryStore(rate.Limit(ipRate), ipBurst, rateLimiterExpiry),
		perAccount: newMemoryStore(accountRate, accountBurst, accountWindow),
		retryIP:    retryIP,
		retryAcct:  accountWindow / time.Duration(accountBurst),
	}
}

func newMemoryStore(limit rate.Limit, burst int, expiry time.Duration) *middleware.RateLimiterMemoryStore {
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     burst,
		ExpiresIn: expiry,
	})
}

// byIP is the route middleware keyed by the client IP.
func (l *attemptLimiter) byIP() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: l.perIP,
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.InternalError("rate limiter failed", err)
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return rateLimited(c, "too many requests from this address", l.retryIP)
		},
	})
}

// allowAccount spends one sign-in attempt for email.
func (l *attemptLimiter) allowAccount(c echo.Context, email string) error {
	key := accountKey(email)
	if key == "" {
		return nil
	}
	ok, err := l.perAccount.Allow(key)
	if err != nil {
		return apperrors.InternalError("rate limiter failed", err)
	}
	if !ok {
		return rateLimited(c, "too many sign-in attempts for this account", l.retryAcct)
	}
	return nil
}

func accountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func rateLimited(c echo.Context, message string, retryAfter time.Duration) error {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
	return apperrors.RateLimitedError(message).WithField("retry_after_seconds", seconds)
}

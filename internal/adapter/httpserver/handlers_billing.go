package httpserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/stripe"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 64 << 10

type membershipCheckoutRequest struct {
	Plan string `json:"plan" form:"plan"`
}

func (s *Server) handleMembership(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	m, err := s.billing.Membership(c.Request().Context(), userID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return writeJSON(c, http.StatusOK, membershipResponse{Status: "none"})
	}
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newMembershipResponse(m, s.clock.Now()))
}

func (s *Server) handleMembershipCheckout(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var req membershipCheckoutRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	session, err := s.billing.CheckoutMembership(c.Request().Context(), userID, domain.MembershipPlan(req.Plan))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, checkoutResponse{SessionID: session.ID, URL: session.URL})
}

func (s *Server) handleCancelMembership(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	m, err := s.billing.CancelMembership(c.Request().Context(), userID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return apperrors.NotFoundError("no active membership")
	}
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, newMembershipResponse(m, s.clock.Now()))
}

// handleStripeWebhook acknowledges every authentic event the marketplace
// does not act on so the provider stops redelivering it. Processing errors
// answer 500 to get a retry.
func (s *Server) handleStripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return apperrors.ValidationError("failed to read webhook body")
	}

	evt, err := s.webhooks.Parse(payload, c.Request().Header.Get(stripe.SignatureHeader))
	switch {
	case errors.Is(err, domain.ErrUnsupportedEvent):
		slog.DebugContext(ctx, "Ignoring payment event", "error", err)
		return c.NoContent(http.StatusOK)
	case errors.Is(err, domain.ErrInvalidWebhook):
		slog.WarnContext(ctx, "Rejected payment webhook", "error", err)
		return apperrors.ValidationError("invalid webhook")
	case err != nil:
		return apperrors.InternalError("failed to parse webhook", err)
	}

	if err := s.billing.HandleEvent(ctx, evt); err != nil {
		if errors.Is(err, domain.ErrUnsupportedEvent) {
			return c.NoContent(http.StatusOK)
		}
		return apperrors.InternalError("failed to process payment event", err).
			WithField("event_id", evt.ID).
			WithField("kind", string(evt.Kind))
	}
	return c.NoContent(http.StatusOK)
}

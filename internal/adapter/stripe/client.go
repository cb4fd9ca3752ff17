// Package stripe implements domain.PaymentGateway on top of stripe-go and
// verifies Stripe webhook deliveries.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/breaker"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

const (
	serviceName     = "stripe"
	httpCallTimeout = 15 * time.Second
	defaultCurrency = "usd"
)

type Client struct {
	api     *client.API
	clock   clockwork.Clock
	policy  retry.Policy
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.ExternalMetrics
}

var _ domain.PaymentGateway = (*Client)(nil)

// NewClient creates a Stripe client talking to baseURL. The SDK's own network
// retries are disabled; retries and circuit breaking happen here. m may be nil.
func NewClient(baseURL, secretKey string, clock clockwork.Clock, m *metrics.ExternalMetrics) *Client {
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(strings.TrimRight(baseURL, "/")),
		HTTPClient:        &http.Client{Timeout: httpCallTimeout},
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	})

	return &Client{
		api:     client.New(secretKey, &stripego.Backends{API: backend, Connect: backend, Uploads: backend}),
		clock:   clock,
		policy:  retry.DefaultHTTPPolicy,
		cb:      breaker.New(serviceName, m.SetBreakerState),
		metrics: m,
	}
}

// CheckHealth fails while calls to Stripe are being short-circuited.
func (c *Client) CheckHealth(context.Context) error {
	return breaker.Check(c.cb)
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(req.Mode)),
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripego.String(req.ClientReferenceID)
	}

	item := &stripego.CheckoutSessionLineItemParams{Quantity: stripego.Int64(1)}
	switch req.Mode {
	case domain.CheckoutSubscription:
		if req.PriceID == "" {
			return nil, fmt.Errorf("subscription checkout requires a price id")
		}
		item.Price = stripego.String(req.PriceID)
	case domain.CheckoutPayment:
		if req.AmountCents <= 0 {
			return nil, fmt.Errorf("payment checkout requires a positive amount, got %d", req.AmountCents)
		}
		currency := req.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		item.PriceData = &stripego.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripego.String(currency),
			UnitAmount: stripego.Int64(req.AmountCents),
			ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripego.String(req.ProductName),
			},
		}
		params.PaymentIntentData = &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"client_reference_id": req.ClientReferenceID},
		}
	default:
		return nil, fmt.Errorf("unsupported checkout mode %q", req.Mode)
	}
	params.LineItems = []*stripego.CheckoutSessionLineItemParams{item}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := call(ctx, c, true, &params.Params, func() (*stripego.CheckoutSession, error) {
		return c.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &domain.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	params := &stripego.SubscriptionParams{}
	sub, err := call(ctx, c, false, &params.Params, func() (*stripego.Subscription, error) {
		return c.api.Subscriptions.Get(id, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
	}
	return toSubscription(sub), nil
}

func (c *Client) CancelSubscriptionAtPeriodEnd(ctx context.Context, id string) (*domain.Subscription, error) {
	params := &stripego.SubscriptionParams{CancelAtPeriodEnd: stripego.Bool(true)}
	sub, err := call(ctx, c, true, &params.Params, func() (*stripego.Subscription, error) {
		return c.api.Subscriptions.Update(id, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription %s: %w", id, err)
	}
	return toSubscription(sub), nil
}

func (c *Client) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripego.RefundParams{PaymentIntent: stripego.String(paymentIntentID)}
	_, err := call(ctx, c, true, &params.Params, func() (*stripego.Refund, error) {
		return c.api.Refunds.New(params)
	})
	if err != nil {
		return fmt.Errorf("failed to refund %s: %w", paymentIntentID, err)
	}
	return nil
}

// call runs one logical request through the breaker. Retries of a mutating
// request reuse the same idempotency key so Stripe never applies it twice.
func call[T any](ctx context.Context, c *Client, mutating bool, params *stripego.Params, op func() (T, error)) (T, error) {
	params.Context = ctx
	if mutating {
		params.SetIdempotencyKey(uuid.NewString())
	}

	start := c.clock.Now()
	res, err := breaker.Execute(c.cb, func() (T, error) {
		return retry.Do(ctx, c.policy, retry.ClassifyHTTP, func() (T, error) {
			v, err := op()
			return v, statusError(err)
		})
	})
	c.metrics.ObserveCall(serviceName, c.clock.Since(start).Seconds(), err)
	return res, err
}

// statusError turns an API error into a retry.StatusError so the retry
// classification and breaker health checks see the HTTP status.
func statusError(err error) error {
	var apiErr *stripego.Error
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &retry.StatusError{Service: serviceName, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Msg}
	}
	return err
}

func toSubscription(s *stripego.Subscription) *domain.Subscription {
	sub := &domain.Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		sub.PriceID = s.Items.Data[0].Price.ID
	}
	if s.CurrentPeriodEnd > 0 {
		sub.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	return sub
}

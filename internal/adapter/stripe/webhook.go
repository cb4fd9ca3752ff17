package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the maximum age of a signed webhook timestamp.
const DefaultTolerance = 5 * time.Minute

// WebhookVerifier checks Stripe-Signature headers and decodes the events the
// marketplace handles.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: DefaultTolerance}
}

// Parse verifies the signature of payload and decodes it. Events of a kind
// the marketplace does not act on return domain.ErrUnsupportedEvent.
func (v *WebhookVerifier) Parse(payload []byte, header string) (*domain.PaymentEvent, error) {
	// The endpoint is pinned in the dashboard; the account's API version may
	// move ahead of the SDK's without changing the fields read below.
	evt, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWebhook, err)
	}
	if evt.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", domain.ErrInvalidWebhook, evt.ID)
	}

	out := &domain.PaymentEvent{ID: evt.ID, Kind: domain.PaymentEventKind(evt.Type)}

	switch out.Kind {
	case domain.EventCheckoutCompleted:
		var sess stripego.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: malformed checkout session: %v", domain.ErrInvalidWebhook, err)
		}
		out.Mode = domain.CheckoutMode(sess.Mode)
		out.CheckoutSessionID = sess.ID
		out.ClientReferenceID = sess.ClientReferenceID
		out.Metadata = sess.Metadata
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: malformed subscription: %v", domain.ErrInvalidWebhook, err)
		}
		out.Subscription = toSubscription(&sub)
		out.SubscriptionID = sub.ID
		out.CustomerID = out.Subscription.CustomerID

	case domain.EventInvoicePaymentFail:
		var inv stripego.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: malformed invoice: %v", domain.ErrInvalidWebhook, err)
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}

	default:
		return out, domain.ErrUnsupportedEvent
	}

	return out, nil
}

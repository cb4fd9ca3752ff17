// Package gemini implements domain.TextGenerator with the Gen AI SDK against
// the Gemini API.
package gemini

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
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

const (
	serviceName     = "gemini"
	apiVersion      = "v1beta"
	httpCallTimeout = 20 * time.Second
	temperature     = float32(0.2)
)

var ErrEmptyResponse = errors.New("gemini returned no candidates")

type Client struct {
	genai   *genai.Client
	model   string
	clock   clockwork.Clock
	policy  retry.Policy
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.ExternalMetrics
}

var _ domain.TextGenerator = (*Client)(nil)

// NewClient builds a Gemini API client. No request is made until
// GenerateJSON is called. m may be nil.
func NewClient(ctx context.Context, baseURL, apiKey, model string, clock clockwork.Clock, m *metrics.ExternalMetrics) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: httpCallTimeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimRight(baseURL, "/") + "/",
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		genai:   gc,
		model:   model,
		clock:   clock,
		policy:  retry.DefaultHTTPPolicy,
		cb:      breaker.New(serviceName, m.SetBreakerState),
		metrics: m,
	}, nil
}

// CheckHealth fails while calls to Gemini are being short-circuited.
func (c *Client) CheckHealth(context.Context) error {
	return breaker.Check(c.cb)
}

// GenerateJSON asks the model for a JSON document answering prompt.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	temp := temperature
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temp,
	}

	start := c.clock.Now()
	text, err := breaker.Execute(c.cb, func() (string, error) {
		return retry.Do(ctx, c.policy, retry.ClassifyHTTP, func() (string, error) {
			return c.generate(ctx, prompt, cfg)
		})
	})
	c.metrics.ObserveCall(serviceName, c.clock.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", statusError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &retry.PermanentError{Err: ErrEmptyResponse}
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

// statusError exposes the HTTP status of an API error to the retry
// classification and breaker health checks.
func statusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &retry.StatusError{Service: serviceName, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}

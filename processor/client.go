package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Client looks up processor objects referenced by webhook events.
type Client interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}

// DefaultBaseURL is the processor API root.
const DefaultBaseURL = stripe.APIURL

// APIError is a non-2xx response from the processor API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("processor: api status %d", e.StatusCode)
	}
	return fmt.Sprintf("processor: api status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient is a Client backed by the processor's REST API through
// stripe-go.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	api     *client.API
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = h }
}

// NewHTTPClient returns a client authenticating with apiKey.
func NewHTTPClient(apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:           stripe.String(c.baseURL),
		HTTPClient:    c.http,
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	c.api = client.New(apiKey, backends)
	return c
}

var _ Client = (*HTTPClient)(nil)

// GetSubscription fetches a subscription by id.
func (c *HTTPClient) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("processor: get subscription %s: %w", subscriptionID, apiError(err))
	}
	return subscriptionFromStripe(sub), nil
}

// ListLineItems returns the line items of a checkout session, following
// pagination.
func (c *HTTPClient) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var out []LineItem
	iter := c.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		out = append(out, lineItemFromStripe(iter.LineItem()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("processor: list line items %s: %w", sessionID, apiError(err))
	}
	return out, nil
}

// apiError maps stripe-go's error type onto APIError.
func apiError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	return &APIError{
		StatusCode: se.HTTPStatusCode,
		Type:       string(se.Type),
		Code:       string(se.Code),
		Message:    se.Msg,
	}
}

package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const ordersPath = "/api/orders"

// maxErrorBody caps how much of a failed response is kept on APIError.
const maxErrorBody = 4 << 10

var (
	ErrMissingClientSecret = errors.New("order response has no payment intent client secret")
	ErrMissingOrder        = errors.New("order response has no order")
)

// APIError is a non-2xx answer from the order backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order api returned %d: %s", e.StatusCode, e.Body)
}

type PaymentIntent struct {
	ClientSecret string `json:"client_secret"`
}

type CreateOrderResponse struct {
	PaymentIntent *PaymentIntent      `json:"paymentIntent"`
	Order         *domain.PlacedOrder `json:"order"`
}

// ClientSecret returns the intent secret or "" when the backend sent none.
func (r *CreateOrderResponse) ClientSecret() string {
	if r.PaymentIntent == nil {
		return ""
	}
	return r.PaymentIntent.ClientSecret
}

type Client struct {
	baseURL  string
	http     *http.Client
	log      zerolog.Logger
	settings gobreaker.Settings
	breaker  *gobreaker.CircuitBreaker[*CreateOrderResponse]
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(cl *Client) {
		cl.settings = st
	}
}

// WithLogger sets the logger for breaker state changes. The default discards them.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) {
		cl.log = l
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:      zerolog.Nop(),
		settings: DefaultBreakerSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = c.newBreaker()
	return c
}

// DefaultBreakerSettings opens after 5 consecutive failures and allows a trial request after 30s.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "order-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[*CreateOrderResponse] {
	st := c.settings
	st.IsSuccessful = isSuccessful
	if st.OnStateChange == nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		}
	}
	return gobreaker.NewCircuitBreaker[*CreateOrderResponse](st)
}

// 4xx answers and caller cancellation say nothing about backend health.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled)
}

// CreateOrder posts the draft to {baseURL}/api/orders. bearer may be empty for guests.
func (c *Client) CreateOrder(ctx context.Context, draft domain.OrderDraft, bearer string) (*CreateOrderResponse, error) {
	resp, err := c.breaker.Execute(func() (*CreateOrderResponse, error) {
		return c.createOrder(ctx, draft, bearer)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) createOrder(ctx context.Context, draft domain.OrderDraft, bearer string) (*CreateOrderResponse, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ordersPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order api request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &APIError{StatusCode: res.StatusCode, Body: string(b)}
	}

	var out CreateOrderResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	if out.Order == nil || out.Order.ID == "" {
		return nil, ErrMissingOrder
	}
	return &out, nil
}

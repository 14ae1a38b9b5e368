// Package http implements the order/payment-routing API client used by the
// effects coordinator.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	intentpay "github.com/RozoAI/intent-pay-sub000"
)

// DefaultBaseURL is the public order/routing service.
const DefaultBaseURL = "https://intent.rozo.ai/api"

// getRetries is the number of attempts for read calls on 429 rate limits.
const getRetries = 3

// getRetryBaseDelay is the base delay for exponential backoff on retries.
const getRetryBaseDelay = 1 * time.Second

// Config configures the order API client.
type Config struct {
	// BaseURL of the order service (optional, defaults to DefaultBaseURL).
	BaseURL string

	// APIKey sent as a bearer token (optional).
	APIKey string

	// HTTPClient to use (optional).
	HTTPClient *http.Client

	// Timeout for requests when no HTTPClient is given (defaults to 30s).
	Timeout time.Duration
}

// Client talks to the remote order service. It implements
// intentpay.OrderAPI.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an order API client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		httpClient: httpClient,
	}
}

// PreviewOrder asks the service to price a destination without persisting
// anything.
func (c *Client) PreviewOrder(ctx context.Context, params intentpay.PayParams) (intentpay.Order, error) {
	return c.postOrder(ctx, "/orders/preview", params)
}

// GetOrder fetches an order by id. Retries on 429 with exponential backoff;
// this is also the refresh-order polling query.
func (c *Client) GetOrder(ctx context.Context, id string) (intentpay.Order, error) {
	return c.getOrder(ctx, "/orders/"+id)
}

// HydrateOrder finalizes the order's destination/intent address.
func (c *Client) HydrateOrder(ctx context.Context, req intentpay.HydrationRequest) (intentpay.Order, error) {
	path := "/orders/hydrate"
	if req.Order.ID != "" {
		path = "/orders/" + req.Order.ID + "/hydrate"
	}
	return c.postOrder(ctx, path, req)
}

// SubmitSourcePayment submits an observed payer transaction for
// verification.
func (c *Client) SubmitSourcePayment(ctx context.Context, orderID string, sub intentpay.SourceSubmission) (intentpay.Order, error) {
	return c.postOrder(ctx, "/orders/"+orderID+"/payments", sub)
}

// FindOrderPayments is the find-source-payment polling query.
func (c *Client) FindOrderPayments(ctx context.Context, orderID string) (intentpay.Order, error) {
	return c.getOrder(ctx, "/orders/"+orderID+"/payments")
}

// ============================================================================
// Internal HTTP methods
// ============================================================================

func (c *Client) postOrder(ctx context.Context, path string, payload interface{}) (intentpay.Order, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return intentpay.Order{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return intentpay.Order{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	// Mutating calls carry a fresh idempotency key so a client retry after
	// a timeout cannot create a second order or payment record.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return intentpay.Order{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeOrderResponse(resp)
}

func (c *Client) getOrder(ctx context.Context, path string) (intentpay.Order, error) {
	var lastErr error

	for attempt := range getRetries {
		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
		if err != nil {
			return intentpay.Order{}, fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return intentpay.Order{}, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			defer resp.Body.Close()
			return decodeOrderResponse(resp)
		}

		responseBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("order service rate limited (%d): %s", resp.StatusCode, string(responseBody))

		if attempt < getRetries-1 {
			delay := getRetryBaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return intentpay.Order{}, ctx.Err()
			}
		}
	}

	return intentpay.Order{}, lastErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// apiError is the service's error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeOrderResponse(resp *http.Response) (intentpay.Order, error) {
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return intentpay.Order{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(responseBody, &apiErr); err == nil && apiErr.Message != "" {
			code := apiErr.Code
			if code == "" {
				code = fmt.Sprintf("http_%d", resp.StatusCode)
			}
			return intentpay.Order{}, intentpay.NewPaymentError(code, apiErr.Message, nil)
		}
		return intentpay.Order{}, fmt.Errorf("order service failed (%d): %s", resp.StatusCode, string(responseBody))
	}

	var order intentpay.Order
	if err := json.Unmarshal(responseBody, &order); err != nil {
		return intentpay.Order{}, fmt.Errorf("failed to decode order response: %w", err)
	}
	return order, nil
}

// Ensure Client implements OrderAPI
var _ intentpay.OrderAPI = (*Client)(nil)

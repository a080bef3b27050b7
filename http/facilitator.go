package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/facilitator"
	"github.com/mark3labs/x402-gate/retry"
)

// AuthorizationProvider returns an Authorization header value for each facilitator call.
type AuthorizationProvider func() string

// FacilitatorClient is a client for communicating with remote x402 facilitator services.
// It implements facilitator.Interface.
type FacilitatorClient struct {
	BaseURL  string
	Client   *http.Client
	Timeouts x402.TimeoutConfig

	// Authorization is a static Authorization header value, e.g. "Bearer <key>".
	Authorization string

	// AuthorizationProvider takes precedence over Authorization when set.
	AuthorizationProvider AuthorizationProvider

	// Retry applies to /verify and /supported only. Settlement is never retried.
	Retry retry.Config
}

var _ facilitator.Interface = (*FacilitatorClient)(nil)

// NewFacilitatorClient creates a client with default timeouts and retry policy.
func NewFacilitatorClient(baseURL string) *FacilitatorClient {
	return &FacilitatorClient{
		BaseURL:  baseURL,
		Client:   &http.Client{},
		Timeouts: x402.DefaultTimeouts,
		Retry:    retry.DefaultConfig,
	}
}

// Verify verifies a payment authorization without executing the transaction.
func (c *FacilitatorClient) Verify(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*facilitator.VerifyResponse, error) {
	body, err := marshalRequest(payment, requirement)
	if err != nil {
		return nil, err
	}

	return retry.WithRetry(ctx, c.retryConfig(), retry.IsTransient, func(ctx context.Context) (*facilitator.VerifyResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeouts().RPCTimeout)
		defer cancel()

		var resp facilitator.VerifyResponse
		if err := c.do(ctx, http.MethodPost, "/verify", body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %w", x402.ErrVerificationFailed, err)
		}
		return &resp, nil
	})
}

// Settle executes a verified payment. A response with Success false is a
// rejection; an error means the outcome is unknown.
func (c *FacilitatorClient) Settle(ctx context.Context, payment x402.PaymentPayload, requirement x402.PaymentRequirement) (*x402.SettlementResponse, error) {
	body, err := marshalRequest(payment, requirement)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts().SettleTimeout)
	defer cancel()

	var resp x402.SettlementResponse
	if err := c.do(ctx, http.MethodPost, "/settle", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", x402.ErrSettlementFailed, err)
	}
	return &resp, nil
}

// Supported queries the facilitator for supported payment types.
func (c *FacilitatorClient) Supported(ctx context.Context) (*facilitator.SupportedResponse, error) {
	return retry.WithRetry(ctx, c.retryConfig(), retry.IsTransient, func(ctx context.Context) (*facilitator.SupportedResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeouts().RPCTimeout)
		defer cancel()

		var resp facilitator.SupportedResponse
		if err := c.do(ctx, http.MethodGet, "/supported", nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

func marshalRequest(payment x402.PaymentPayload, requirement x402.PaymentRequirement) ([]byte, error) {
	data, err := json.Marshal(facilitator.Request{
		X402Version:         x402.X402Version,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func (c *FacilitatorClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %w: %v", x402.ErrFacilitatorUnavailable, x402.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", x402.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusGatewayTimeout {
			return fmt.Errorf("%w: %s %s: status %d: %s", x402.ErrTimeout, method, path, resp.StatusCode, bytes.TrimSpace(msg))
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *FacilitatorClient) authorization() string {
	if c.AuthorizationProvider != nil {
		return c.AuthorizationProvider()
	}
	return c.Authorization
}

func (c *FacilitatorClient) timeouts() x402.TimeoutConfig {
	if c.Timeouts.Validate() != nil {
		return x402.DefaultTimeouts
	}
	return c.Timeouts
}

func (c *FacilitatorClient) retryConfig() retry.Config {
	if c.Retry.MaxAttempts < 1 {
		return retry.Config{MaxAttempts: 1}
	}
	return c.Retry
}

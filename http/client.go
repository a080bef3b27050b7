package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/encoding"
)

// Client is an http.Client that pays for 402 responses with its signers.
type Client struct {
	*http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a new x402-enabled HTTP client.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{Client: &http.Client{}}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	transport(c)
	return c, nil
}

// WithHTTPClient uses httpClient as the underlying client. Its transport
// becomes the base of the payment transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("%w: nil http client", x402.ErrInvalidConfig)
		}
		prev, _ := c.Transport.(*X402Transport)
		c.Client = httpClient
		if prev != nil {
			t := transport(c)
			t.Signers = prev.Signers
			t.Selector = prev.Selector
			t.OnPaymentAttempt, t.OnPaymentSuccess, t.OnPaymentFailure = prev.OnPaymentAttempt, prev.OnPaymentSuccess, prev.OnPaymentFailure
		}
		return nil
	}
}

// WithTimeout sets the overall request timeout, covering both the 402 round
// trip and the paid one.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.Timeout = d
		return nil
	}
}

// WithSigner adds a payment signer. The selector picks among all signers.
func WithSigner(signer x402.Signer) ClientOption {
	return func(c *Client) error {
		if signer == nil {
			return fmt.Errorf("%w: nil signer", x402.ErrInvalidConfig)
		}
		t := transport(c)
		t.Signers = append(t.Signers, signer)
		return nil
	}
}

// WithSelector sets a custom payment selector.
func WithSelector(selector x402.PaymentSelector) ClientOption {
	return func(c *Client) error {
		transport(c).Selector = selector
		return nil
	}
}

// WithPaymentCallback sets the callback for one payment event type.
func WithPaymentCallback(eventType x402.PaymentEventType, callback x402.PaymentCallback) ClientOption {
	return func(c *Client) error {
		t := transport(c)
		switch eventType {
		case x402.PaymentEventAttempt:
			t.OnPaymentAttempt = callback
		case x402.PaymentEventSuccess:
			t.OnPaymentSuccess = callback
		case x402.PaymentEventFailure:
			t.OnPaymentFailure = callback
		default:
			return fmt.Errorf("unknown payment event type: %s", eventType)
		}
		return nil
	}
}

// transport returns the client's X402Transport, wrapping the current transport
// on first use.
func transport(c *Client) *X402Transport {
	if t, ok := c.Transport.(*X402Transport); ok {
		return t
	}
	t := &X402Transport{
		Base:     c.Transport,
		Selector: x402.NewDefaultPaymentSelector(),
	}
	c.Transport = t
	return t
}

// GetSettlement extracts settlement information from an HTTP response.
// It returns nil if the header is absent or cannot be decoded.
func GetSettlement(resp *http.Response) *x402.SettlementResponse {
	header := resp.Header.Get(x402.PaymentResponseHeader)
	if header == "" {
		return nil
	}
	settlement, err := encoding.DecodeSettlement(header)
	if err != nil {
		return nil
	}
	return &settlement
}

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/encoding"
	"github.com/mark3labs/x402-gate/validation"
)

// X402Transport is a RoundTripper that answers 402 Payment Required responses.
// On a 402 it picks one of the offered requirements, signs an authorization
// with a matching signer and sends the request once more with X-PAYMENT set.
type X402Transport struct {
	// Base is the underlying RoundTripper (http.DefaultTransport when nil).
	Base http.RoundTripper

	// Signers is the list of available payment signers.
	Signers []x402.Signer

	// Selector chooses the requirement and signer.
	Selector x402.PaymentSelector

	OnPaymentAttempt x402.PaymentCallback
	OnPaymentSuccess x402.PaymentCallback
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper.
func (t *X402Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	selector := t.Selector
	if selector == nil {
		selector = x402.NewDefaultPaymentSelector()
	}

	// The body is sent twice when payment is needed.
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := base.RoundTrip(withBody(req, body))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	requirements, err := parsePaymentRequirements(resp)
	resp.Body.Close()
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements, "failed to parse payment requirements", err)
	}

	payment, requirement, err := selector.SelectAndSign(requirements, t.Signers)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	event := x402.PaymentEvent{
		Timestamp: start,
		URL:       req.URL.String(),
		Network:   requirement.Network,
		Amount:    requirement.MaxAmountRequired,
		Asset:     requirement.Asset,
		Recipient: requirement.PayTo,
	}
	t.emit(t.OnPaymentAttempt, x402.PaymentEventAttempt, event)

	header, err := encoding.EncodePayment(*payment)
	if err != nil {
		event.Error = err
		t.emit(t.OnPaymentFailure, x402.PaymentEventFailure, event)
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to encode payment header", err)
	}

	paid := withBody(req, body)
	paid.Header.Set(x402.PaymentHeader, header)

	resp, err = base.RoundTrip(paid)
	event.Duration = time.Since(start)
	event.Timestamp = time.Now()
	if err != nil {
		event.Error = err
		t.emit(t.OnPaymentFailure, x402.PaymentEventFailure, event)
		return nil, err
	}

	settlement := GetSettlement(resp)
	switch {
	case settlement != nil && settlement.Success:
		event.Transaction = settlement.Transaction
		t.emit(t.OnPaymentSuccess, x402.PaymentEventSuccess, event)
	case resp.StatusCode >= 400:
		event.Error = fmt.Errorf("payment not accepted: status %d", resp.StatusCode)
		t.emit(t.OnPaymentFailure, x402.PaymentEventFailure, event)
	}

	// The response is returned as is so the caller can read a rejection reason.
	return resp, nil
}

func (t *X402Transport) emit(cb x402.PaymentCallback, typ x402.PaymentEventType, event x402.PaymentEvent) {
	if cb == nil {
		return
	}
	event.Type = typ
	cb(event)
}

// parsePaymentRequirements extracts the usable requirements from a 402 response.
func parsePaymentRequirements(resp *http.Response) ([]x402.PaymentRequirement, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope x402.PaymentRequirementsResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse payment requirements JSON: %w", err)
	}
	if envelope.X402Version != x402.X402Version {
		return nil, fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, envelope.X402Version)
	}

	requirements := make([]x402.PaymentRequirement, 0, len(envelope.Accepts))
	for _, req := range envelope.Accepts {
		if validation.ValidatePaymentRequirement(req) != nil {
			continue
		}
		requirements = append(requirements, req)
	}
	if len(requirements) == 0 {
		return nil, fmt.Errorf("no usable payment requirements in response")
	}
	return requirements, nil
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

func withBody(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
	}
	return clone
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/x402-gate"
	"github.com/mark3labs/x402-gate/facilitator"
	"github.com/mark3labs/x402-gate/retry"
	"github.com/mark3labs/x402-gate/verify"
)

func TestFacilitatorClient_Verify(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("Expected path /verify, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Expected Authorization header, got %q", r.Header.Get("Authorization"))
		}
		var req facilitator.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.X402Version != 1 || req.PaymentRequirements.MaxAmountRequired != "50000" {
			t.Errorf("Unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(facilitator.VerifyResponse{
			IsValid: true,
			Payer:   "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		})
	}))
	defer mockServer.Close()

	client := NewFacilitatorClient(mockServer.URL)
	client.Authorization = "Bearer secret"

	resp, err := client.Verify(context.Background(), x402.PaymentPayload{X402Version: 1}, x402.BuildRequirement("https://api.example.com/x", testRoute()))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !resp.IsValid {
		t.Error("Expected valid response")
	}
}

func TestFacilitatorClient_AuthorizationProvider(t *testing.T) {
	var calls atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer dynamic" {
			t.Errorf("Expected provider token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(facilitator.SupportedResponse{})
	}))
	defer mockServer.Close()

	client := NewFacilitatorClient(mockServer.URL)
	client.Authorization = "Bearer static"
	client.AuthorizationProvider = func() string {
		calls.Add(1)
		return "Bearer dynamic"
	}

	if _, err := client.Supported(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected provider to be called once, got %d", calls.Load())
	}
}

func TestFacilitatorClient_SettleErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantTimeout bool
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, wantTimeout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			}))
			defer mockServer.Close()

			client := NewFacilitatorClient(mockServer.URL)
			_, err := client.Settle(context.Background(), x402.PaymentPayload{}, x402.PaymentRequirement{})
			if !errors.Is(err, x402.ErrSettlementFailed) {
				t.Fatalf("Expected ErrSettlementFailed, got %v", err)
			}
			if errors.Is(err, x402.ErrTimeout) != tt.wantTimeout {
				t.Errorf("timeout classification wrong for %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("settle must not be retried, got %d calls", calls.Load())
			}
		})
	}
}

func TestFacilitatorClient_Unavailable(t *testing.T) {
	client := NewFacilitatorClient("http://127.0.0.1:1")
	client.Retry = retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err := client.Verify(context.Background(), x402.PaymentPayload{}, x402.PaymentRequirement{})
	if !errors.Is(err, x402.ErrFacilitatorUnavailable) {
		t.Errorf("Expected ErrFacilitatorUnavailable, got %v", err)
	}
}

// TestFacilitatorClient_RemoteGate runs the gate against a facilitator served over HTTP.
func TestFacilitatorClient_RemoteGate(t *testing.T) {
	local, err := facilitator.NewLocal(verify.New(verify.WithClock(x402.UnixClock(signedAt))), nil,
		facilitator.WithNetworks("base-sepolia"))
	if err != nil {
		t.Fatal(err)
	}
	facilitatorServer := httptest.NewServer(facilitator.NewHandler(local, nil))
	defer facilitatorServer.Close()

	client := NewFacilitatorClient(facilitatorServer.URL)
	supported, err := client.Supported(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(supported.Kinds) != 1 || supported.Kinds[0].Network != "base-sepolia" {
		t.Errorf("unexpected supported kinds %+v", supported.Kinds)
	}

	config := &Config{Route: testRoute(), Facilitator: client}
	var called bool
	handler := NewX402Middleware(config)(paidHandler(t, &called))

	req := challenge(t, handler, "/compute").Accepts[0]
	payment, err := testSigner(t).Sign(&req)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, paidRequest(t, "/compute", payment))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, paidRequest(t, "/compute", payment))
	if replay.Code != http.StatusPaymentRequired {
		t.Errorf("expected replay to be rejected by the remote facilitator, got %d", replay.Code)
	}
}

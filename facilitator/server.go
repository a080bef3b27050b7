package facilitator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/x402-gate"
)

const maxRequestBody = 64 << 10

// NewHandler exposes f over HTTP:
//
//	POST /verify     Request -> VerifyResponse
//	POST /settle     Request -> x402.SettlementResponse
//	GET  /supported  SupportedResponse
func NewHandler(f Interface, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{facilitator: f, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/verify", s.verify)
	r.Post("/settle", s.settle)
	r.Get("/supported", s.supported)
	return r
}

type server struct {
	facilitator Interface
	logger      *slog.Logger
}

func (s *server) decode(w http.ResponseWriter, r *http.Request) (*Request, bool) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}
	if req.X402Version != x402.X402Version {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported x402Version"})
		return nil, false
	}
	return &req, true
}

func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	resp, err := s.facilitator.Verify(r.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		s.logger.Error("verify failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) settle(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	resp, err := s.facilitator.Settle(r.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		s.logger.Error("settle failed", "error", err, "payer", req.PaymentPayload.Payload.From)
		status := http.StatusInternalServerError
		if errors.Is(err, x402.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) supported(w http.ResponseWriter, r *http.Request) {
	resp, err := s.facilitator.Supported(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

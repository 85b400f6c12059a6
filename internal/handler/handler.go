// Package handler serves the payment HTTP API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
	"github.com/xenking/crackers-checkout/pkg/httpmiddleware"
)

// maxBodySize bounds request bodies.
const maxBodySize = 100 << 10

// PaymentService is the subset of *payment.Service used by the handlers.
type PaymentService interface {
	CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (*payment.Order, error)
	VerifyPayment(ctx context.Context, c payment.Claim) (*payment.VerificationResult, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Name appears in the "/" banner message.
	Name    string
	Version string
	// Development exposes internal error text in 500 responses.
	Development bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler routes the payment endpoints and the service banner.
type Handler struct {
	payments PaymentService
	cfg      Config
}

// New returns a Handler.
func New(payments PaymentService, cfg Config) *Handler {
	if cfg.Name == "" {
		cfg.Name = "SSS Crackers"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Handler{payments: payments, cfg: cfg}
}

// Register mounts every route on mux. Unmatched requests get a JSON 404.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/payment/create-order", h.CreateOrder)
	mux.HandleFunc("POST /api/payment/verify", h.VerifyPayment)
	mux.HandleFunc("GET /{$}", h.Banner)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("/", h.NotFound)
}

// Banner reports that the service is up.
func (h *Handler) Banner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			e.Field("message", func(e *jx.Encoder) { e.Str(h.cfg.Name + " API is running") })
			e.Field("version", func(e *jx.Encoder) { e.Str(h.cfg.Version) })
		})
	})
}

// Health is the unconditional liveness ping kept for existing monitors;
// /livez and /readyz carry the real probes.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	now := h.cfg.Now().UTC()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str("healthy") })
			e.Field("timestamp", func(e *jx.Encoder) { e.Str(now.Format(time.RFC3339Nano)) })
		})
	})
}

// NotFound answers any unrouted request.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	httpmiddleware.WriteJSONError(w, http.StatusNotFound, "Route not found.", "")
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// internal/app/features/captcha/captcha.go

// Package captcha exposes the Turnstile verification gate used by clients
// before they submit direct identity claims.
//
// Endpoints:
//   - POST /turnstile/verify
//   - POST /api/verify-captcha (same handler, panel-facing alias)
package captcha

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/stratagate/internal/app/system/jsonutil"
	"github.com/dalemusser/stratagate/internal/app/system/metrics"
	"github.com/dalemusser/stratagate/internal/app/system/turnstile"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler handles captcha verification requests.
type Handler struct {
	verifier  *turnstile.Verifier
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewHandler creates a new captcha Handler.
func NewHandler(verifier *turnstile.Verifier, collector *metrics.Collector, logger *zap.Logger) *Handler {
	return &Handler{verifier: verifier, collector: collector, logger: logger}
}

// Routes returns a chi.Router with the verify route mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleVerify)
	return r
}

// handleVerify checks a challenge token. The response is always 200 with a
// success flag; a failed upstream check is a normal "not verified" outcome,
// not a server error.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}

	ok := h.verifier.Verify(r.Context(), in.Token)
	h.collector.RecordCaptcha(ok)
	jsonutil.OK(w, map[string]bool{"success": ok})
}

// internal/app/features/login/login.go

// Package login handles direct-claims logins from the game client and the
// public ban check.
//
// Endpoints:
//   - POST /auth/login - record a login for a client-submitted identity claim
//   - GET /auth/check_ban/{id} - report whether an identity is banned
package login

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	banstore "github.com/dalemusser/stratagate/internal/app/store/bans"
	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/jsonutil"
	"github.com/dalemusser/stratagate/internal/app/system/metrics"
	"github.com/dalemusser/stratagate/internal/app/system/notify"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Handler handles direct login requests.
type Handler struct {
	userStore  *userstore.Store
	banStore   *banstore.Store
	rateLimits *ratelimit.Store
	sessionMgr *auth.SessionManager
	notifier   *notify.Sink
	collector  *metrics.Collector
	sanitizer  *bluemonday.Policy
	ownerID    string
	logger     *zap.Logger
}

// NewHandler creates a new login Handler.
func NewHandler(
	userStore *userstore.Store,
	banStore *banstore.Store,
	rateLimits *ratelimit.Store,
	sessionMgr *auth.SessionManager,
	notifier *notify.Sink,
	collector *metrics.Collector,
	ownerID string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:  userStore,
		banStore:   banStore,
		rateLimits: rateLimits,
		sessionMgr: sessionMgr,
		notifier:   notifier,
		collector:  collector,
		sanitizer:  bluemonday.StrictPolicy(),
		ownerID:    ownerID,
		logger:     logger,
	}
}

// Routes returns a chi.Router with login routes mounted under /auth.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.Get("/check_ban/{id}", h.handleCheckBan)
	return r
}

// loginRequest is the direct identity claim submitted by the game client.
type loginRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Avatar   string `json:"avatar"`
	HWID     string `json:"hwid"`
}

// handleLogin validates the claim, enforces the ban list and the
// hardware-binding policy, updates the ledger, and establishes a session.
// Nothing is mutated on any rejection path.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.collector.RecordLogin(metrics.LoginResultInvalid)
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	if in.ID == "" || in.Username == "" {
		h.collector.RecordLogin(metrics.LoginResultInvalid)
		jsonutil.BadRequest(w, "Missing required fields")
		return
	}

	ctx := r.Context()

	// Lockout gate before any record access.
	if allowed, _ := h.rateLimits.CheckAllowed(ctx, in.ID); !allowed {
		h.collector.RecordLogin(metrics.LoginResultLocked)
		jsonutil.TooManyRequests(w, "Too many failed attempts; try again later")
		return
	}

	reason, banned, err := h.banStore.IsBanned(ctx, in.ID)
	if err != nil {
		h.logger.Error("ban lookup failed",
			zap.String("identity_id", in.ID), zap.Error(err))
		jsonutil.InternalError(w, "Ban check failed")
		return
	}
	if banned {
		h.collector.RecordLogin(metrics.LoginResultBanned)
		h.logger.Info("banned identity rejected",
			zap.String("identity_id", in.ID),
			zap.String("client_ip", clientIP(r)))
		jsonutil.JSON(w, http.StatusForbidden, map[string]string{
			"error":  "banned",
			"reason": reason,
		})
		return
	}

	profile := models.Profile{
		// Usernames render in the admin panel; strip any markup.
		Username:      h.sanitizer.Sanitize(in.Username),
		Email:         in.Email,
		EmailVerified: in.Verified,
	}

	user, created, err := h.userStore.RecordLogin(ctx, in.ID, profile, in.HWID)
	if err != nil {
		if errors.Is(err, userstore.ErrHardwareMismatch) {
			h.collector.RecordLogin(metrics.LoginResultMismatch)
			h.rateLimits.RecordFailure(ctx, in.ID)
			h.logger.Warn("hardware fingerprint mismatch",
				zap.String("identity_id", in.ID),
				zap.String("client_ip", clientIP(r)))
			jsonutil.Forbidden(w, "Hardware fingerprint mismatch")
			return
		}
		h.logger.Error("login record update failed",
			zap.String("identity_id", in.ID), zap.Error(err))
		jsonutil.InternalError(w, "Failed to record login")
		return
	}

	_ = h.rateLimits.ClearOnSuccess(ctx, in.ID)

	role := auth.RoleFor(in.ID, h.ownerID)
	if err := h.sessionMgr.Establish(w, r, in.ID, role, false); err != nil {
		// The ledger update stands; losing the cookie only costs the client
		// a re-login.
		h.logger.Warn("session establish failed after login",
			zap.String("identity_id", in.ID), zap.Error(err))
	}

	if created {
		h.notifier.Emit("New user",
			fmt.Sprintf("**%s**\nID: %s", user.Username, user.ID),
			notify.SeverityInfo)
	}

	h.collector.RecordLogin(metrics.LoginResultSuccess)
	jsonutil.OK(w, map[string]any{
		"success": true,
		"user":    user,
	})
}

// handleCheckBan reports ban status for an identity id.
func (h *Handler) handleCheckBan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonutil.BadRequest(w, "Missing identity id")
		return
	}

	reason, banned, err := h.banStore.IsBanned(r.Context(), id)
	if err != nil {
		h.logger.Error("ban lookup failed",
			zap.String("identity_id", id), zap.Error(err))
		jsonutil.InternalError(w, "Ban check failed")
		return
	}

	resp := map[string]any{"banned": banned}
	if banned {
		resp["reason"] = reason
	}
	jsonutil.OK(w, resp)
}

// clientIP extracts the client IP from the request for logging.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

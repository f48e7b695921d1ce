// internal/app/features/authdiscord/authdiscord.go
package authdiscord

// Terminology: User Identifiers
//   - IdentityID / identityID / identity id: the stable external user identifier
//     supplied by the OAuth provider.

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	banstore "github.com/dalemusser/stratagate/internal/app/store/bans"
	"github.com/dalemusser/stratagate/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/discord"
	"github.com/dalemusser/stratagate/internal/app/system/metrics"
	"github.com/dalemusser/stratagate/internal/app/system/notify"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Handler provides Discord OAuth handlers.
type Handler struct {
	userStore       *userstore.Store
	banStore        *banstore.Store
	oauthStateStore *oauthstate.Store
	sessionMgr      *auth.SessionManager
	exchange        *discord.Exchange
	notifier        *notify.Sink
	collector       *metrics.Collector
	sanitizer       *bluemonday.Policy
	ownerID         string
	logger          *zap.Logger
}

// NewHandler creates a new Discord OAuth Handler.
func NewHandler(
	userStore *userstore.Store,
	banStore *banstore.Store,
	oauthStateStore *oauthstate.Store,
	sessionMgr *auth.SessionManager,
	exchange *discord.Exchange,
	notifier *notify.Sink,
	collector *metrics.Collector,
	ownerID string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:       userStore,
		banStore:        banStore,
		oauthStateStore: oauthStateStore,
		sessionMgr:      sessionMgr,
		exchange:        exchange,
		notifier:        notifier,
		collector:       collector,
		sanitizer:       bluemonday.StrictPolicy(),
		ownerID:         ownerID,
		logger:          logger,
	}
}

// Routes returns a chi.Router with the OAuth start route mounted.
// The callback is mounted at the root separately (the provider redirect
// target is /callback).
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.startAuth)
	return r
}

// startAuth initiates the Discord OAuth flow. The remember query flag rides
// in the stored state so the callback can pick the session lifetime.
func (h *Handler) startAuth(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		redirectError(w, r, "oauth_error")
		return
	}

	remember := r.URL.Query().Get("remember") == "true"
	if err := h.oauthStateStore.Create(r.Context(), state, remember); err != nil {
		h.logger.Error("failed to store state", zap.Error(err))
		redirectError(w, r, "oauth_error")
		return
	}

	http.Redirect(w, r, h.exchange.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow: verify the single-use state,
// exchange the code, check the ban list, record the login, and establish the
// session. No ledger state is mutated after a failed or timed-out exchange.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	remember, ok := h.oauthStateStore.Consume(ctx, state)
	if !ok {
		h.logger.Warn("invalid oauth state")
		redirectError(w, r, "invalid_state")
		return
	}

	// Check for an error relayed by the provider before spending the code.
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.logger.Warn("oauth error from provider", zap.String("error", errMsg))
		redirectError(w, r, errMsg)
		return
	}

	code := r.URL.Query().Get("code")
	profile, err := h.exchange.ExchangeCode(ctx, code)
	if err != nil {
		h.collector.RecordLogin(metrics.LoginResultUpstream)
		var authErr *discord.AuthError
		switch {
		case errors.As(err, &authErr):
			// Surface the provider's own description, never swallow it.
			h.logger.Warn("provider rejected code exchange",
				zap.String("description", authErr.Description))
			redirectError(w, r, authErr.Description)
		case errors.Is(err, discord.ErrUpstreamUnavailable):
			h.logger.Warn("identity provider unavailable", zap.Error(err))
			redirectError(w, r, "provider_unavailable")
		default:
			h.logger.Error("code exchange failed", zap.Error(err))
			redirectError(w, r, "token_exchange_failed")
		}
		return
	}

	reason, banned, err := h.banStore.IsBanned(ctx, profile.ID)
	if err != nil {
		h.logger.Error("ban lookup failed",
			zap.String("identity_id", profile.ID), zap.Error(err))
		redirectError(w, r, "ban_check_failed")
		return
	}
	if banned {
		h.collector.RecordLogin(metrics.LoginResultBanned)
		h.logger.Info("banned identity rejected on callback",
			zap.String("identity_id", profile.ID),
			zap.String("reason", reason))
		redirectError(w, r, "banned")
		return
	}

	claim := models.Profile{
		Username:      h.sanitizer.Sanitize(profile.Username),
		Email:         profile.Email,
		EmailVerified: profile.Verified,
	}

	// OAuth logins carry no hardware fingerprint; binding is left untouched.
	user, created, err := h.userStore.RecordLogin(ctx, profile.ID, claim, "")
	if err != nil {
		h.logger.Error("login record update failed",
			zap.String("identity_id", profile.ID), zap.Error(err))
		redirectError(w, r, "login_failed")
		return
	}

	role := auth.RoleFor(profile.ID, h.ownerID)
	if err := h.sessionMgr.Establish(w, r, profile.ID, role, remember); err != nil {
		h.logger.Error("failed to establish session", zap.Error(err))
		redirectError(w, r, "session_error")
		return
	}

	if created {
		h.notifier.Emit("New user",
			fmt.Sprintf("**%s**\nID: %s", user.Username, user.ID),
			notify.SeverityInfo)
	}
	h.collector.RecordLogin(metrics.LoginResultSuccess)

	if role == models.RoleOwner {
		http.Redirect(w, r, "/panel", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// generateState generates a random state token.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// redirectError sends the browser back to the landing page with an error tag.
func redirectError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

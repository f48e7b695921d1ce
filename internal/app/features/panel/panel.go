// internal/app/features/panel/panel.go
package panel

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	banstore "github.com/dalemusser/stratagate/internal/app/store/bans"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/jsonutil"
	"github.com/dalemusser/stratagate/internal/app/system/metrics"
	"github.com/dalemusser/stratagate/internal/app/system/notify"
)

// activeWindow is how far back a login counts toward the "active users" stat.
const activeWindow = 24 * time.Hour

// Handler serves the moderation endpoints. All routes require an owner
// session; enforcement happens in Routes so handlers can assume an
// authenticated owner.
type Handler struct {
	userStore      *userstore.Store
	banStore       *banstore.Store
	sessionMgr     *auth.SessionManager
	notifier       *notify.Sink
	collector      *metrics.Collector
	sanitizer      *bluemonday.Policy
	banNotifyDedup bool
	logger         *zap.Logger
}

func NewHandler(
	userStore *userstore.Store,
	banStore *banstore.Store,
	sessionMgr *auth.SessionManager,
	notifier *notify.Sink,
	collector *metrics.Collector,
	banNotifyDedup bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:      userStore,
		banStore:       banStore,
		sessionMgr:     sessionMgr,
		notifier:       notifier,
		collector:      collector,
		sanitizer:      bluemonday.StrictPolicy(),
		banNotifyDedup: banNotifyDedup,
		logger:         logger,
	}
}

// Routes returns the moderation router. Both the legacy /admin paths and the
// /api/panel paths mount this same router from bootstrap.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.sessionMgr.RequireOwner)

	r.Post("/ban", h.handleBan)
	r.Post("/unban", h.handleUnban)
	r.Post("/unban/{id}", h.handleUnban)
	r.Get("/users", h.handleUsers)
	r.Get("/banned", h.handleBanned)
	r.Get("/stats", h.handleStats)

	return r
}

type banRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

func (h *Handler) handleBan(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		jsonutil.BadRequest(w, "user_id is required")
		return
	}

	actorID := ""
	if actor, ok := auth.CurrentUser(r); ok {
		actorID = actor.IdentityID
	}
	reason := strings.TrimSpace(h.sanitizer.Sanitize(req.Reason))

	ban, changed, err := h.banStore.Ban(r.Context(), req.UserID, reason, actorID)
	if err != nil {
		h.logger.Error("ban failed",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		jsonutil.InternalError(w, "failed to ban user")
		return
	}

	h.collector.RecordBan()
	h.logger.Info("user banned",
		zap.String("user_id", ban.ID),
		zap.String("reason", ban.Reason),
		zap.String("banned_by", actorID))

	if changed || !h.banNotifyDedup {
		h.notifier.Emit("User banned",
			"ID: "+ban.ID+"\nReason: "+ban.Reason,
			notify.SeverityAlert)
	}

	jsonutil.OK(w, map[string]any{
		"success": true,
		"ban":     ban,
	})
}

func (h *Handler) handleUnban(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		var req banRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonutil.BadRequest(w, "invalid request body")
			return
		}
		id = strings.TrimSpace(req.UserID)
	}
	if id == "" {
		jsonutil.BadRequest(w, "user_id is required")
		return
	}

	removed, err := h.banStore.Unban(r.Context(), id)
	if err != nil {
		h.logger.Error("unban failed", zap.String("user_id", id), zap.Error(err))
		jsonutil.InternalError(w, "failed to unban user")
		return
	}

	if removed {
		actorID := ""
		if actor, ok := auth.CurrentUser(r); ok {
			actorID = actor.IdentityID
		}
		h.collector.RecordUnban()
		h.logger.Info("user unbanned",
			zap.String("user_id", id),
			zap.String("unbanned_by", actorID))
		h.notifier.Emit("User unbanned", "ID: "+id, notify.SeveritySuccess)
	}

	jsonutil.OK(w, map[string]any{
		"success": true,
		"removed": removed,
	})
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.userStore.List(r.Context())
	if err != nil {
		h.logger.Error("user listing failed", zap.Error(err))
		jsonutil.InternalError(w, "failed to list users")
		return
	}

	jsonutil.OK(w, map[string]any{
		"total": len(list),
		"users": list,
	})
}

func (h *Handler) handleBanned(w http.ResponseWriter, r *http.Request) {
	list, err := h.banStore.List(r.Context())
	if err != nil {
		h.logger.Error("ban listing failed", zap.Error(err))
		jsonutil.InternalError(w, "failed to list bans")
		return
	}

	jsonutil.OK(w, map[string]any{
		"total":  len(list),
		"banned": list,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.userStore.Count(ctx)
	if err != nil {
		h.logger.Error("stats: user count failed", zap.Error(err))
		jsonutil.InternalError(w, "failed to compute stats")
		return
	}
	banned, err := h.banStore.Count(ctx)
	if err != nil {
		h.logger.Error("stats: ban count failed", zap.Error(err))
		jsonutil.InternalError(w, "failed to compute stats")
		return
	}
	active, err := h.userStore.CountActiveSince(ctx, time.Now().UTC().Add(-activeWindow))
	if err != nil {
		h.logger.Error("stats: active count failed", zap.Error(err))
		jsonutil.InternalError(w, "failed to compute stats")
		return
	}
	logins, err := h.userStore.TotalLogins(ctx)
	if err != nil {
		h.logger.Error("stats: login total failed", zap.Error(err))
		jsonutil.InternalError(w, "failed to compute stats")
		return
	}

	jsonutil.OK(w, map[string]any{
		"total_users":  total,
		"banned_users": banned,
		"active_users": active,
		"total_logins": logins,
	})
}

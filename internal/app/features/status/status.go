// internal/app/features/status/status.go
package status

import (
	"net/http"

	"go.uber.org/zap"

	banstore "github.com/dalemusser/stratagate/internal/app/store/bans"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/jsonutil"
)

// Version is the reported service version. Overridden at build time with
// -ldflags "-X .../status.Version=...".
var Version = "dev"

// Handler serves the root service status summary.
type Handler struct {
	userStore *userstore.Store
	banStore  *banstore.Store
	logger    *zap.Logger
}

func NewHandler(userStore *userstore.Store, banStore *banstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		userStore: userStore,
		banStore:  banStore,
		logger:    logger,
	}
}

// Summary responds with a lightweight operational snapshot. The counts are
// best effort: a store failure degrades them to zero rather than failing the
// whole endpoint, since this route doubles as a cheap liveness probe for
// external monitors.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userCount, err := h.userStore.Count(ctx)
	if err != nil {
		h.logger.Warn("status: user count failed", zap.Error(err))
	}
	banCount, err := h.banStore.Count(ctx)
	if err != nil {
		h.logger.Warn("status: ban count failed", zap.Error(err))
	}

	jsonutil.OK(w, map[string]any{
		"status":  "online",
		"version": Version,
		"users":   userCount,
		"banned":  banCount,
	})
}

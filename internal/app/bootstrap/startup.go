// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratagate/internal/app/system/metrics"
	"github.com/dalemusser/stratagate/internal/app/system/notify"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// collector and notifier are created once at startup and shared between
// BuildHandler and Shutdown.
var (
	collector *metrics.Collector
	notifier  *notify.Sink
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// Returning a non-nil error will abort startup and prevent the server from
// starting.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	collector = metrics.NewCollector()

	// The notification sink owns its delivery worker; an empty webhook URL
	// disables delivery but keeps the API usable.
	notifier = notify.New(appCfg.WebhookURL, collector, logger)
	if appCfg.WebhookURL == "" {
		logger.Info("webhook notifications disabled (no webhook_url configured)")
	} else {
		logger.Info("webhook notifications enabled")
	}

	if appCfg.OwnerID == "" {
		logger.Warn("no owner_id configured; moderation endpoints will reject every session")
	}

	return nil
}

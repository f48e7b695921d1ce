// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATAGATE"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STRATAGATE_MONGO_URI, STRATAGATE_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratagate", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratagate-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Default session lifetime (e.g., 24h, 30m)"},
	{Name: "session_remember_age", Default: "720h", Desc: "Session lifetime with remember-me (e.g., 720h)"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable lockout tracking for failed login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Discord OAuth configuration
	{Name: "discord_client_id", Default: "", Desc: "Discord OAuth2 client ID"},
	{Name: "discord_client_secret", Default: "", Desc: "Discord OAuth2 client secret"},

	// Base URL for the OAuth redirect target
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL for the OAuth callback"},

	// Owner and binding policy
	{Name: "owner_id", Default: "", Desc: "Identity id granted the owner role on login"},
	{Name: "hwid_policy", Default: "strict", Desc: "Hardware binding policy: 'strict' or 'lenient'"},

	// Cloudflare Turnstile
	{Name: "turnstile_secret", Default: "", Desc: "Turnstile secret key for siteverify calls"},

	// Webhook notifications
	{Name: "webhook_url", Default: "", Desc: "Discord webhook URL for event notifications (empty disables)"},
	{Name: "ban_notify_dedup", Default: false, Desc: "Suppress ban notifications when the ban record did not change"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATAGATE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:         appValues.String("session_key"),
		SessionName:        appValues.String("session_name"),
		SessionDomain:      appValues.String("session_domain"),
		SessionMaxAge:      appValues.Duration("session_max_age", 24*time.Hour),
		SessionRememberAge: appValues.Duration("session_remember_age", 720*time.Hour),

		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		CSRFKey: appValues.String("csrf_key"),

		DiscordClientID:     appValues.String("discord_client_id"),
		DiscordClientSecret: appValues.String("discord_client_secret"),

		BaseURL: appValues.String("base_url"),

		OwnerID:    appValues.String("owner_id"),
		HWIDPolicy: appValues.String("hwid_policy"),

		TurnstileSecret: appValues.String("turnstile_secret"),

		WebhookURL:     appValues.String("webhook_url"),
		BanNotifyDedup: appValues.Bool("ban_notify_dedup"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if _, err := userstore.ParsePolicy(appCfg.HWIDPolicy); err != nil {
		logger.Error("invalid hardware binding policy",
			zap.String("hwid_policy", appCfg.HWIDPolicy), zap.Error(err))
		return err
	}

	if appCfg.SessionRememberAge < appCfg.SessionMaxAge {
		return fmt.Errorf("session_remember_age (%s) must be at least session_max_age (%s)",
			appCfg.SessionRememberAge, appCfg.SessionMaxAge)
	}

	return nil
}

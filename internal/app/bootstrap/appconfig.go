// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level and format, CORS, and request body size
// limits. Everything specific to this service lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey         string        // Secret key for signing session cookies (must be strong in production)
	SessionName        string        // Cookie name for sessions (default: stratagate-session)
	SessionDomain      string        // Cookie domain (blank means current host)
	SessionMaxAge      time.Duration // Default session lifetime (default: 24h)
	SessionRememberAge time.Duration // Session lifetime when "remember me" is requested (default: 720h)

	// Rate limiting configuration for direct logins
	RateLimitEnabled       bool          // Enable lockout tracking for failed login attempts (default: true)
	RateLimitLoginAttempts int           // Max failed login attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Time window for counting failed attempts (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration after exceeding limit (default: 15m)

	// CSRF protection configuration (browser-facing moderation routes)
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// Discord OAuth configuration
	DiscordClientID     string // Discord OAuth2 client ID
	DiscordClientSecret string // Discord OAuth2 client secret

	// Base URL used to build the OAuth redirect target
	BaseURL string // e.g., "https://example.com" or "http://localhost:8080"

	// OwnerID is the identity id granted the owner role on login.
	OwnerID string

	// Hardware fingerprint binding policy: "strict" rejects logins whose
	// fingerprint differs from the bound one, "lenient" rebinds instead.
	HWIDPolicy string

	// Cloudflare Turnstile configuration
	TurnstileSecret string // Secret key for siteverify calls (empty disables real verification)

	// Discord webhook notification configuration
	WebhookURL     string // Webhook endpoint for event notifications (empty disables)
	BanNotifyDedup bool   // Suppress ban notifications when the ban record did not change
}

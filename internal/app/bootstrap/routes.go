// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	authdiscordfeature "github.com/dalemusser/stratagate/internal/app/features/authdiscord"
	captchafeature "github.com/dalemusser/stratagate/internal/app/features/captcha"
	healthfeature "github.com/dalemusser/stratagate/internal/app/features/health"
	loginfeature "github.com/dalemusser/stratagate/internal/app/features/login"
	logoutfeature "github.com/dalemusser/stratagate/internal/app/features/logout"
	panelfeature "github.com/dalemusser/stratagate/internal/app/features/panel"
	statusfeature "github.com/dalemusser/stratagate/internal/app/features/status"
	banstore "github.com/dalemusser/stratagate/internal/app/store/bans"
	"github.com/dalemusser/stratagate/internal/app/store/oauthstate"
	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/discord"
	"github.com/dalemusser/stratagate/internal/app/system/turnstile"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed.
//
// Route groups:
//   - Game client API: /auth/login, /auth/check_ban/{id}, /turnstile/verify.
//     JSON in and out, no CSRF (no browser involved).
//   - Browser surface: /auth/discord, /callback, /logout and the /admin
//     moderation routes. The /admin group carries CSRF protection.
//   - /api/panel mirrors /admin for the panel's fetch calls, which carry the
//     session cookie but no CSRF form token.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"

	sessionMgr, err := auth.NewSessionManager(
		appCfg.SessionKey,
		appCfg.SessionName,
		appCfg.SessionDomain,
		appCfg.SessionMaxAge,
		appCfg.SessionRememberAge,
		secure,
		logger,
	)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Stores. The binding policy was validated in ValidateConfig.
	policy, err := userstore.ParsePolicy(appCfg.HWIDPolicy)
	if err != nil {
		return nil, err
	}
	users := userstore.New(deps.MongoDatabase, policy)
	bans := banstore.New(deps.MongoDatabase)
	oauthStates := oauthstate.New(deps.MongoDatabase)

	var rateLimits *ratelimit.Store
	if appCfg.RateLimitEnabled {
		rateLimits = ratelimit.New(
			deps.MongoDatabase,
			appCfg.RateLimitLoginAttempts,
			appCfg.RateLimitLoginWindow,
			appCfg.RateLimitLoginLockout,
		)
	}

	r := chi.NewRouter()

	// Global middleware. CORS must run early to handle preflight requests.
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(sessionMgr.LoadSessionUser)

	// Service status summary at the root.
	statusHandler := statusfeature.NewHandler(users, bans, logger)
	r.Get("/", statusHandler.Summary)

	// Health check endpoints for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Captcha verification. Both paths accept the same payload; the /api
	// alias exists for clients that prefix every call with /api.
	verifier := turnstile.New(appCfg.TurnstileSecret, "", logger)
	captchaHandler := captchafeature.NewHandler(verifier, collector, logger)
	r.Mount("/turnstile/verify", captchafeature.Routes(captchaHandler))
	r.Mount("/api/verify-captcha", captchafeature.Routes(captchaHandler))

	// Direct login API for the game client.
	loginHandler := loginfeature.NewHandler(
		users,
		bans,
		rateLimits,
		sessionMgr,
		notifier,
		collector,
		appCfg.OwnerID,
		logger,
	)
	r.Mount("/auth", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Discord OAuth (only mounted when configured).
	discordEnabled := appCfg.DiscordClientID != "" && appCfg.DiscordClientSecret != ""
	if discordEnabled {
		exchange := discord.New(discord.Config{
			ClientID:     appCfg.DiscordClientID,
			ClientSecret: appCfg.DiscordClientSecret,
			RedirectURL:  appCfg.BaseURL + "/callback",
		})
		discordHandler := authdiscordfeature.NewHandler(
			users,
			bans,
			oauthStates,
			sessionMgr,
			exchange,
			notifier,
			collector,
			appCfg.OwnerID,
			logger,
		)
		r.Mount("/auth/discord", authdiscordfeature.Routes(discordHandler))
		r.Get("/callback", discordHandler.HandleCallback)
		logger.Info("Discord OAuth enabled",
			zap.String("redirect_url", appCfg.BaseURL+"/callback"))
	}

	// Moderation endpoints. /admin is the browser surface and carries CSRF;
	// /api/panel serves the panel's fetch calls with session auth only.
	panelHandler := panelfeature.NewHandler(
		users,
		bans,
		sessionMgr,
		notifier,
		collector,
		appCfg.BanNotifyDedup,
		logger,
	)

	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratagate_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	csrfProtect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	r.Route("/admin", func(sr chi.Router) {
		sr.Use(csrfProtect)
		sr.Mount("/", panelfeature.Routes(panelHandler))
	})
	r.Mount("/api/panel", panelfeature.Routes(panelHandler))

	// Prometheus metrics.
	r.Handle("/metrics", collector.Handler())

	return r, nil
}

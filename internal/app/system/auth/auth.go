// internal/app/system/auth/auth.go
package auth

// Terminology: User Identifiers
//   - IdentityID / identityID / identity id: the stable external user identifier
//     supplied by the OAuth provider or by a direct client claim.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratagate/internal/app/system/jsonutil"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Session error classification for logging and monitoring.
type sessionErrorType int

const (
	sessionErrUnknown sessionErrorType = iota
	sessionErrExpired                  // timestamp expired - normal
	sessionErrTampered                 // MAC invalid - potential attack
	sessionErrCorrupted                // decode/decrypt failed - corruption or key rotation
	sessionErrBackend                  // store/backend failure
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey       = "is_authenticated"
	identityIDKey   = "identity_id"
	userRoleKey     = "user_role"
	issuedAtKey     = "issued_at"
	rememberKey     = "remember"
	sessionTokenKey = "session_token"
)

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager - injectable session management                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager is the exclusive owner of session state. It establishes,
// validates, and revokes sessions; no other component mutates session data.
// Use NewSessionManager to create an instance.
type SessionManager struct {
	store       *sessions.CookieStore
	logger      *zap.Logger
	name        string
	maxAge      time.Duration // default session lifetime
	rememberAge time.Duration // extended lifetime for "remember me" sessions
}

// NewSessionManager creates a new SessionManager with the provided configuration.
//
// Parameters:
//   - sessionKey: signing key for cookies (must be ≥32 chars in production)
//   - name: session cookie name (defaults to "stratagate-session" if empty)
//   - domain: cookie domain (empty means current host)
//   - maxAge: default session lifetime (e.g., 24*time.Hour)
//   - rememberAge: extended lifetime used when a session is established with
//     the remember flag (e.g., 720*time.Hour)
//   - secure: if true, cookies are Secure (for HTTPS production)
//   - logger: zap logger for session error logging
//
// Returns an error if sessionKey is empty or too weak for production mode.
func NewSessionManager(sessionKey, name, domain string, maxAge, rememberAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, &SessionConfigError{Message: "session key is empty; provide ≥32 random chars"}
	}

	// Check for weak/default keys
	isWeak := len(sessionKey) < 32 || isDefaultKey(sessionKey)

	if secure {
		// In production mode, require a strong key - fail startup if weak
		if isWeak {
			return nil, &SessionConfigError{
				Message: "session key is too weak for production; provide ≥32 random chars (not the default dev key)",
			}
		}
	} else if isWeak {
		// In dev mode, warn but allow weak keys
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = "stratagate-session"
	}
	if rememberAge < maxAge {
		rememberAge = maxAge
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	// The securecookie codec validates cookie timestamps against MaxAge, so
	// both lifetimes must be accepted at decode time; per-session expiry is
	// enforced against issued_at in LoadSessionUser.
	for _, codec := range store.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(rememberAge.Seconds()))
		}
	}

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.Duration("max_age", maxAge),
		zap.Duration("remember_age", rememberAge))

	return &SessionManager{
		store:       store,
		logger:      logger,
		name:        name,
		maxAge:      maxAge,
		rememberAge: rememberAge,
	}, nil
}

// SessionConfigError is returned when session configuration is invalid.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string {
	return e.Message
}

// SessionName returns the configured session cookie name.
func (sm *SessionManager) SessionName() string {
	return sm.name
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser represents the authenticated identity in the request context.
type SessionUser struct {
	IdentityID string
	Role       string // models.RoleOwner or models.RoleStandard; fixed at issuance
	IssuedAt   time.Time
	Remember   bool
	Token      string
}

// IsOwner reports whether this session carries the owner role.
func (u *SessionUser) IsOwner() bool {
	return u.Role == models.RoleOwner
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag from the request context.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadSessionUser returns middleware that injects the session user into the
// request context if a valid, unexpired session cookie is present. Expired
// and invalid sessions leave the context empty; the distinction is logged.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			// Classify the session error for appropriate logging.
			errType, errCategory := classifySessionError(err)
			switch errType {
			case sessionErrExpired:
				sm.logger.Debug("session expired, starting fresh session",
					zap.String("category", errCategory),
					zap.String("path", r.URL.Path))
			case sessionErrTampered:
				sm.logger.Warn("session MAC validation failed (possible tampering)",
					zap.String("category", errCategory),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("user_agent", r.UserAgent()))
			case sessionErrCorrupted:
				sm.logger.Info("session decode failed, starting fresh session",
					zap.String("category", errCategory),
					zap.String("path", r.URL.Path))
			case sessionErrBackend:
				sm.logger.Error("session store error, starting fresh session",
					zap.Error(err),
					zap.String("path", r.URL.Path))
			default:
				sm.logger.Warn("session error, starting fresh session",
					zap.Error(err),
					zap.String("category", errCategory),
					zap.String("path", r.URL.Path))
			}
		}

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			identityID := getString(sess, identityIDKey)
			if identityID != "" {
				u := &SessionUser{
					IdentityID: identityID,
					Role:       getString(sess, userRoleKey),
					Remember:   getBool(sess, rememberKey),
					Token:      getString(sess, sessionTokenKey),
				}
				if unix, ok := sess.Values[issuedAtKey].(int64); ok {
					u.IssuedAt = time.Unix(unix, 0)
				}

				// Remember sessions live longer than the default lifetime.
				// The cookie codec accepts both, so the cutoff for default
				// sessions is enforced here.
				if sm.expired(u) {
					sm.logger.Debug("session lifetime elapsed",
						zap.String("identity_id", identityID),
						zap.Time("issued_at", u.IssuedAt))
					sess.Options.MaxAge = -1
					_ = sess.Save(r, w) // best effort to clear
				} else {
					r = withUser(r, u)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// expired reports whether a session's configured lifetime has elapsed.
func (sm *SessionManager) expired(u *SessionUser) bool {
	if u.IssuedAt.IsZero() {
		return false
	}
	lifetime := sm.maxAge
	if u.Remember {
		lifetime = sm.rememberAge
	}
	return time.Since(u.IssuedAt) > lifetime
}

// RequireSignedIn returns middleware that ensures there is a user in context.
// API callers get a JSON 401; no record set is touched.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		jsonutil.Unauthorized(w, "authentication required")
	})
}

// RequireOwner returns middleware that ensures the session carries the owner
// role. The check happens once at dispatch, before any side effect: missing
// session → 401, non-owner session → 403.
func (sm *SessionManager) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r)
		if !ok {
			jsonutil.Unauthorized(w, "authentication required")
			return
		}
		if !u.IsOwner() {
			jsonutil.Forbidden(w, "owner role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects a SessionUser into the request context for testing.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

// getBool safely extracts a bool from a session value.
func getBool(s *sessions.Session, key string) bool {
	v, _ := s.Values[key].(bool)
	return v
}

// isDefaultKey checks if the session key appears to be a default/placeholder value.
func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	patterns := []string{
		"dev-only",
		"change-me",
		"placeholder",
		"default",
		"example",
		"insecure",
		"test-key",
		"secret123",
		"password",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// classifySessionError categorizes a session/cookie error for appropriate logging.
func classifySessionError(err error) (sessionErrorType, string) {
	if err == nil {
		return sessionErrUnknown, "none"
	}

	errStr := strings.ToLower(err.Error())

	if scErr, ok := err.(securecookie.Error); ok {
		if !scErr.IsDecode() {
			return sessionErrBackend, "backend"
		}

		switch {
		case strings.Contains(errStr, "expired timestamp"):
			return sessionErrExpired, "expired"
		case strings.Contains(errStr, "mac") || strings.Contains(errStr, "hash"):
			return sessionErrTampered, "mac_invalid"
		case strings.Contains(errStr, "decrypt"):
			return sessionErrCorrupted, "decrypt_failed"
		case strings.Contains(errStr, "base64") || strings.Contains(errStr, "decode"):
			return sessionErrCorrupted, "decode_failed"
		default:
			return sessionErrCorrupted, "decode_other"
		}
	}

	return sessionErrBackend, "unknown"
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session lifecycle                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// Establish creates a session bound to the identity id and role. The remember
// flag selects the extended lifetime. Role is fixed for the life of the
// session.
func (sm *SessionManager) Establish(w http.ResponseWriter, r *http.Request, identityID, role string, remember bool) error {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		// Create new session if can't get existing
		sess, _ = sm.store.New(r, sm.name)
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return err
	}

	sess.Values[isAuthKey] = true
	sess.Values[identityIDKey] = identityID
	sess.Values[userRoleKey] = role
	sess.Values[issuedAtKey] = time.Now().Unix()
	sess.Values[rememberKey] = remember
	sess.Values[sessionTokenKey] = token

	if remember {
		sess.Options.MaxAge = int(sm.rememberAge.Seconds())
	} else {
		sess.Options.MaxAge = int(sm.maxAge.Seconds())
	}

	return sess.Save(r, w)
}

// GenerateSessionToken generates a random URL-safe token for session tracking.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Revoke terminates the user's session. Revocation is terminal: the cookie is
// cleared and the previous values are discarded.
func (sm *SessionManager) Revoke(w http.ResponseWriter, r *http.Request) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return
	}

	sess.Values[isAuthKey] = false
	delete(sess.Values, identityIDKey)
	delete(sess.Values, userRoleKey)
	delete(sess.Values, issuedAtKey)
	delete(sess.Values, rememberKey)
	delete(sess.Values, sessionTokenKey)

	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

// RoleFor returns the role a session should carry for the given identity id,
// compared against the configured owner identity id.
func RoleFor(identityID, ownerID string) string {
	if ownerID != "" && identityID == ownerID {
		return models.RoleOwner
	}
	return models.RoleStandard
}

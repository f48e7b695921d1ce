// internal/app/system/discord/discord.go

// Package discord performs the authorization-code-for-token-and-profile
// exchange against the Discord identity provider. It is stateless: one call
// in, one profile (or error) out. OAuth codes are single use, so the exchange
// is never retried.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultAuthURL     = "https://discord.com/oauth2/authorize"
	defaultTokenURL    = "https://discord.com/api/oauth2/token"
	defaultUserInfoURL = "https://discord.com/api/users/@me"

	// upstreamTimeout bounds each provider call so a hung upstream cannot
	// exhaust request-handling capacity.
	upstreamTimeout = 10 * time.Second
)

// ErrUpstreamUnavailable indicates a network fault or timeout talking to the
// provider. The client may retry; the service itself never does.
var ErrUpstreamUnavailable = errors.New("identity provider unavailable")

// AuthError is returned when the provider itself rejects the code or token.
// It carries the provider-supplied description so callers can surface it.
type AuthError struct {
	Description string
}

func (e *AuthError) Error() string {
	return "provider rejected authorization: " + e.Description
}

// Profile is the provider-supplied identity snapshot.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Avatar   string `json:"avatar"`
}

// Config holds the provider client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// URL overrides for tests; production uses the Discord defaults.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// Exchange is the OAuth client for Discord.
type Exchange struct {
	oauthConfig *oauth2.Config
	userInfoURL string
}

// New creates a Discord OAuth exchange client.
func New(cfg Config) *Exchange {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	return &Exchange{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

// AuthCodeURL returns the provider authorization URL carrying the state token.
func (e *Exchange) AuthCodeURL(state string) string {
	return e.oauthConfig.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for the user's profile: first
// code→token, then token→profile. Provider rejections surface the provider's
// own description as *AuthError; network faults and timeouts map to
// ErrUpstreamUnavailable.
func (e *Exchange) ExchangeCode(ctx context.Context, code string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	token, err := e.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	profile, err := e.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// fetchProfile retrieves the user profile with the obtained token.
func (e *Exchange) fetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := e.oauthConfig.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Description: fmt.Sprintf("profile fetch returned status %d", resp.StatusCode)}
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %v", ErrUpstreamUnavailable, err)
	}
	return &profile, nil
}

// classifyExchangeError maps a token-exchange failure onto the error taxonomy.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		desc := retrieveErr.ErrorDescription
		if desc == "" {
			desc = retrieveErr.ErrorCode
		}
		if desc == "" {
			desc = string(retrieveErr.Body)
		}
		return &AuthError{Description: desc}
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

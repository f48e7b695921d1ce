package authdiscord

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	banstore "github.com/dalemusser/stratagate/internal/app/store/bans"
	"github.com/dalemusser/stratagate/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/discord"
	"github.com/dalemusser/stratagate/internal/app/system/metrics"
	"github.com/dalemusser/stratagate/internal/app/system/notify"
	"github.com/dalemusser/stratagate/internal/testutil"
)

// fakeProvider stands in for the Discord token and userinfo endpoints.
type fakeProvider struct {
	srv *httptest.Server

	// rejectDescription, when set, makes the token endpoint reject the code
	// with this error_description.
	rejectDescription string
	profile           discord.Profile
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		profile: discord.Profile{
			ID:       "111",
			Username: "alice",
			Email:    "alice@example.com",
			Verified: true,
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p.rejectDescription != "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": p.rejectDescription,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fake-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.profile)
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) exchange() *discord.Exchange {
	return discord.New(discord.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/callback",
		AuthURL:      p.srv.URL + "/authorize",
		TokenURL:     p.srv.URL + "/token",
		UserInfoURL:  p.srv.URL + "/me",
	})
}

func newTestHandler(t *testing.T, db *mongo.Database, exchange *discord.Exchange, ownerID string) (*Handler, *oauthstate.Store, *banstore.Store, *userstore.Store) {
	t.Helper()
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager(
		"test-session-key-0123456789-abcdefghij",
		"stratagate-session", "", 24*time.Hour, 720*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	users := userstore.New(db, userstore.PolicyStrict)
	bans := banstore.New(db)
	states := oauthstate.New(db)
	collector := metrics.NewCollector()
	notifier := notify.New("", collector, logger)
	t.Cleanup(func() {
		ctx, cancel := testutil.TestContext()
		defer cancel()
		notifier.Close(ctx)
	})

	h := NewHandler(users, bans, states, sessionMgr, exchange, notifier, collector, ownerID, logger)
	return h, states, bans, users
}

func TestStartAuth_RedirectsToProvider(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	h, _, _, _ := newTestHandler(t, db, p.exchange(), "")
	router := Routes(h)

	req := httptest.NewRequest(http.MethodGet, "/?remember=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), p.srv.URL+"/authorize") {
		t.Errorf("Location = %q, want provider authorize URL", loc)
	}
	if loc.Query().Get("state") == "" {
		t.Error("authorize URL carries no state")
	}
	if loc.Query().Get("client_id") != "client-id" {
		t.Errorf("client_id = %q", loc.Query().Get("client_id"))
	}
}

func callbackRequest(t *testing.T, states *oauthstate.Store, remember bool, query string) *http.Request {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := states.Create(ctx, "state-abc", remember); err != nil {
		t.Fatalf("Create state: %v", err)
	}
	return httptest.NewRequest(http.MethodGet, "/callback?state=state-abc&"+query, nil)
}

func TestCallback_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	h, states, _, users := newTestHandler(t, db, p.exchange(), "")

	req := callbackRequest(t, states, false, "code=good-code")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	user, err := users.GetByID(ctx, "111")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if user.Username != "alice" || user.TotalLogins != 1 {
		t.Errorf("user = %+v", user)
	}
	if user.HardwareFingerprint != "" {
		t.Errorf("OAuth login bound a fingerprint: %q", user.HardwareFingerprint)
	}

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "stratagate-session" {
			found = true
		}
	}
	if !found {
		t.Error("no session cookie in response")
	}
}

func TestCallback_OwnerRedirectsToPanel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	h, states, _, _ := newTestHandler(t, db, p.exchange(), "111")

	req := callbackRequest(t, states, false, "code=good-code")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/panel" {
		t.Errorf("Location = %q, want /panel", loc)
	}
}

func TestCallback_InvalidState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	h, _, _, _ := newTestHandler(t, db, p.exchange(), "")

	req := httptest.NewRequest(http.MethodGet, "/callback?state=never-stored&code=good-code", nil)
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?error=invalid_state" {
		t.Errorf("Location = %q, want /?error=invalid_state", loc)
	}
}

func TestCallback_StateIsSingleUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	h, states, _, _ := newTestHandler(t, db, p.exchange(), "")

	req := callbackRequest(t, states, false, "code=good-code")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("first callback: status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}

	// Replaying the same state must fail.
	req = httptest.NewRequest(http.MethodGet, "/callback?state=state-abc&code=good-code", nil)
	rec = httptest.NewRecorder()
	h.HandleCallback(rec, req)
	if loc := rec.Header().Get("Location"); loc != "/?error=invalid_state" {
		t.Errorf("replayed state: Location = %q, want /?error=invalid_state", loc)
	}
}

func TestCallback_ProviderRejection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	p.rejectDescription = "Invalid authorization code"
	h, states, _, _ := newTestHandler(t, db, p.exchange(), "")

	req := callbackRequest(t, states, false, "code=bad-code")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	// The provider's own description is surfaced, not swallowed.
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, url.QueryEscape("Invalid authorization code")) {
		t.Errorf("Location = %q, want provider description surfaced", loc)
	}
}

func TestCallback_ProviderUnavailable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	exchange := p.exchange()
	p.srv.Close() // exchange now dials a dead server
	h, states, _, _ := newTestHandler(t, db, exchange, "")

	req := callbackRequest(t, states, false, "code=good-code")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/?error=provider_unavailable" {
		t.Errorf("Location = %q, want /?error=provider_unavailable", loc)
	}
}

func TestCallback_BannedIdentity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := newFakeProvider(t)
	h, states, bans, users := newTestHandler(t, db, p.exchange(), "")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, _, err := bans.Ban(ctx, "111", "Cheating", "admin-1"); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	req := callbackRequest(t, states, false, "code=good-code")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/?error=banned" {
		t.Errorf("Location = %q, want /?error=banned", loc)
	}
	if _, err := users.GetByID(ctx, "111"); err != userstore.ErrNotFound {
		t.Errorf("banned callback created a record: err = %v, want ErrNotFound", err)
	}
}

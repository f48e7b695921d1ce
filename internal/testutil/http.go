package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"github.com/google/uuid"
)

// TestUser represents session data for testing HTTP handlers.
type TestUser struct {
	IdentityID string
	Role       string
}

// OwnerUser returns a TestUser with the owner role.
func OwnerUser() TestUser {
	return TestUser{
		IdentityID: uuid.New().String(),
		Role:       models.RoleOwner,
	}
}

// StandardUser returns a TestUser with the standard role.
func StandardUser() TestUser {
	return TestUser{
		IdentityID: uuid.New().String(),
		Role:       models.RoleStandard,
	}
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	sessionUser := &auth.SessionUser{
		IdentityID: user.IdentityID,
		Role:       user.Role,
		IssuedAt:   time.Now(),
	}
	return auth.WithTestUser(r, sessionUser)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return WithUser(req, user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	body := r.Body.String()
	if !strings.Contains(body, expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d, want 200", rec.Code)
	}
	return rec.Body.String()
}

func TestCountersAppearInScrape(t *testing.T) {
	c := NewCollector()

	c.RecordLogin(LoginResultSuccess)
	c.RecordLogin(LoginResultSuccess)
	c.RecordLogin(LoginResultBanned)
	c.RecordBan()
	c.RecordUnban()
	c.RecordCaptcha(true)
	c.RecordCaptcha(false)
	c.RecordNotificationDropped()

	body := scrape(t, c)

	want := []string{
		`stratagate_logins_total{result="success"} 2`,
		`stratagate_logins_total{result="banned"} 1`,
		`stratagate_bans_total 1`,
		`stratagate_unbans_total 1`,
		`stratagate_captcha_verifications_total{result="pass"} 1`,
		`stratagate_captcha_verifications_total{result="fail"} 1`,
		`stratagate_notifications_dropped_total 1`,
	}
	for _, line := range want {
		if !strings.Contains(body, line) {
			t.Errorf("scrape missing %q", line)
		}
	}
}

func TestIndependentRegistries(t *testing.T) {
	// Two collectors must not interfere; a second NewCollector would panic
	// if it registered into a shared default registry.
	a := NewCollector()
	b := NewCollector()

	a.RecordBan()

	if body := scrape(t, b); strings.Contains(body, "stratagate_bans_total 1") {
		t.Error("counter from one collector leaked into another's registry")
	}
}

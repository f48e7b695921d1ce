// internal/app/system/metrics/metrics.go

// Package metrics collects and exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login result labels.
const (
	LoginResultSuccess  = "success"
	LoginResultBanned   = "banned"
	LoginResultMismatch = "hwid_mismatch"
	LoginResultLocked   = "locked_out"
	LoginResultInvalid  = "invalid"
	LoginResultUpstream = "upstream_error"
)

// Collector records service-level counters.
type Collector struct {
	registry *prometheus.Registry

	logins               *prometheus.CounterVec
	bans                 prometheus.Counter
	unbans               prometheus.Counter
	captchaChecks        *prometheus.CounterVec
	notificationsDropped prometheus.Counter
}

// NewCollector creates a Collector with its own registry so tests can run in
// parallel without duplicate-registration panics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratagate_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		bans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratagate_bans_total",
			Help: "Ban operations issued by administrators.",
		}),
		unbans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratagate_unbans_total",
			Help: "Unban operations issued by administrators.",
		}),
		captchaChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratagate_captcha_verifications_total",
			Help: "Captcha verification attempts by result.",
		}, []string{"result"}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratagate_notifications_dropped_total",
			Help: "Notifications dropped because the outbound queue was full.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.logins,
		c.bans,
		c.unbans,
		c.captchaChecks,
		c.notificationsDropped,
	)
	return c
}

// RecordLogin counts a login attempt outcome. Use the LoginResult* labels.
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordBan counts a ban operation.
func (c *Collector) RecordBan() { c.bans.Inc() }

// RecordUnban counts an unban operation.
func (c *Collector) RecordUnban() { c.unbans.Inc() }

// RecordCaptcha counts a captcha verification outcome ("pass" or "fail").
func (c *Collector) RecordCaptcha(ok bool) {
	result := "fail"
	if ok {
		result = "pass"
	}
	c.captchaChecks.WithLabelValues(result).Inc()
}

// RecordNotificationDropped counts a dropped outbound notification.
func (c *Collector) RecordNotificationDropped() { c.notificationsDropped.Inc() }

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

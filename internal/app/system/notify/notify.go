// internal/app/system/notify/notify.go

// Package notify emits event messages to a Discord-style webhook channel.
// Emission is fire-and-forget: delivery failures are logged and discarded,
// never propagated to the caller, never retried. The sink is an observability
// aid, not part of the consistency model.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Severity selects the embed color shown in the channel.
type Severity int

const (
	SeverityInfo    Severity = iota // blue - new user and similar events
	SeveritySuccess                 // green - unban
	SeverityAlert                   // red - ban
)

// Embed colors matching the channel conventions.
const (
	colorInfo    = 3447003
	colorSuccess = 3066993
	colorAlert   = 15158332
)

const (
	emitTimeout = 5 * time.Second
	queueSize   = 64
)

type event struct {
	id       string
	title    string
	body     string
	severity Severity
}

// DropRecorder counts notifications dropped because the queue was full.
type DropRecorder interface {
	RecordNotificationDropped()
}

// Sink delivers notifications in the background. Emit never blocks the
// caller: events go onto a buffered queue consumed by a single worker, and a
// full queue drops the event.
type Sink struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
	drops      DropRecorder

	queue chan event
	wg    sync.WaitGroup
	once  sync.Once

	// mu guards closed. Emit takes the read side so concurrent emits stay
	// cheap; Close takes the write side before closing the queue, so an
	// emit can never send on a closed channel.
	mu     sync.RWMutex
	closed bool
}

// New creates a Sink and starts its delivery worker. An empty webhookURL
// disables delivery; Emit becomes a no-op.
func New(webhookURL string, drops DropRecorder, logger *zap.Logger) *Sink {
	s := &Sink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: emitTimeout},
		logger:     logger,
		drops:      drops,
		queue:      make(chan event, queueSize),
	}
	if webhookURL != "" {
		s.wg.Add(1)
		go s.run()
	}
	return s
}

// Emit queues a notification for background delivery. It never blocks and
// never fails the caller; when the queue is full the event is dropped and
// counted.
func (s *Sink) Emit(title, body string, severity Severity) {
	if s.webhookURL == "" {
		return
	}
	ev := event{
		id:       uuid.New().String()[:8],
		title:    title,
		body:     body,
		severity: severity,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("notification sink closed, dropping event",
			zap.String("event_id", ev.id),
			zap.String("title", title))
		if s.drops != nil {
			s.drops.RecordNotificationDropped()
		}
		return
	}

	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("notification queue full, dropping event",
			zap.String("event_id", ev.id),
			zap.String("title", title))
		if s.drops != nil {
			s.drops.RecordNotificationDropped()
		}
	}
}

// Close stops accepting events and waits for queued deliveries to drain or
// the context to expire.
func (s *Sink) Close(ctx context.Context) error {
	if s.webhookURL == "" {
		return nil
	}
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.queue)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("notification sink drained")
		return nil
	case <-ctx.Done():
		s.logger.Warn("notification sink shutdown timed out",
			zap.Int("queued", len(s.queue)))
		return ctx.Err()
	}
}

// run is the delivery worker.
func (s *Sink) run() {
	defer s.wg.Done()
	for ev := range s.queue {
		s.deliver(ev)
	}
}

// deliver posts one embed. Failures are logged and discarded.
func (s *Sink) deliver(ev event) {
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       ev.title,
			"description": ev.body,
			"color":       colorFor(ev.severity),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("notification encode failed",
			zap.String("event_id", ev.id), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("notification request build failed",
			zap.String("event_id", ev.id), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("event_id", ev.id), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("notification rejected by channel",
			zap.String("event_id", ev.id),
			zap.Int("status", resp.StatusCode))
	}
}

func colorFor(sev Severity) int {
	switch sev {
	case SeveritySuccess:
		return colorSuccess
	case SeverityAlert:
		return colorAlert
	default:
		return colorInfo
	}
}

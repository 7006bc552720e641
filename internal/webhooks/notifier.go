// Package webhooks posts upload outcomes to an operator-configured URL.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier delivers events asynchronously with exponential backoff. Events
// that cannot be queued are dropped and logged.
type Notifier struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Log         zerolog.Logger

	queue chan delivery
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

type delivery struct {
	ID        string
	EventType string
	Body      []byte
}

func NewNotifier(url, secret string, maxAttempts int, log zerolog.Logger) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Notifier{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Backoff:     nextBackoff,
		Log:         log,
		queue:       make(chan delivery, 64),
		stop:        make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-n.stop:
				return
			case d := <-n.queue:
				n.deliver(d)
			}
		}
	}()
}

// Stop ends delivery after the in-flight event; queued events are dropped.
func (n *Notifier) Stop() {
	n.once.Do(func() { close(n.stop) })
	n.wg.Wait()
}

// Notify queues an event. It never blocks.
func (n *Notifier) Notify(eventType string, data any) {
	id := "evt_" + uuid.NewString()
	body, err := json.Marshal(map[string]any{
		"id":   id,
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	})
	if err != nil {
		n.Log.Error().Err(err).Str("event_type", eventType).Msg("webhook encode failed")
		return
	}
	select {
	case n.queue <- delivery{ID: id, EventType: eventType, Body: body}:
	default:
		n.Log.Warn().Str("event_type", eventType).Msg("webhook queue full, dropping event")
	}
}

func (n *Notifier) deliver(d delivery) {
	for attempt := 0; attempt < n.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-n.stop:
				return
			case <-time.After(n.Backoff(attempt - 1)):
			}
		}
		code, err := n.post(d)
		if err == nil && code >= 200 && code < 300 {
			n.Log.Debug().Str("event_id", d.ID).Int("attempt", attempt+1).Msg("webhook delivered")
			return
		}
		n.Log.Warn().Err(err).Str("event_id", d.ID).Int("status", code).Int("attempt", attempt+1).Msg("webhook delivery failed")
	}
	n.Log.Error().Str("event_id", d.ID).Str("event_type", d.EventType).Msg("webhook gave up")
}

func (n *Notifier) post(d delivery) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(d.Body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("X-Event-Id", d.ID)
	if n.Secret != "" {
		req.Header.Set("X-Signature", Sign(n.Secret, d.Body))
	}
	resp, err := n.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign returns "sha256=" plus the lowercase hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return fmt.Sprintf("sha256=%x", mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(secret string, body []byte, sig string) bool {
	const prefix = "sha256="
	if len(sig) <= len(prefix) || sig[:len(prefix)] != prefix {
		return false
	}
	got, err := hex.DecodeString(sig[len(prefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

func nextBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 8 {
		attempt = 8
	}
	return time.Second * time.Duration(1<<attempt)
}

package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNotifierDeliversSigned(t *testing.T) {
	got := make(chan *http.Request, 1)
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		got <- r
		w.WriteHeader(204)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "secret", 3, zerolog.Nop())
	n.HTTP = srv.Client()
	n.Start()
	defer n.Stop()
	n.Notify("upload.completed", map[string]any{"total_missing": 1})

	select {
	case r := <-got:
		if r.Header.Get("X-Event-Type") != "upload.completed" {
			t.Fatalf("event type header: %q", r.Header.Get("X-Event-Type"))
		}
		if !Verify("secret", body, r.Header.Get("X-Signature")) {
			t.Fatalf("signature did not verify: %q", r.Header.Get("X-Signature"))
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload["type"] != "upload.completed" || payload["id"] != r.Header.Get("X-Event-Id") {
			t.Fatalf("unexpected payload %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for delivery")
	}
}

func TestNotifierRetries(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
		close(done)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", 3, zerolog.Nop())
	n.HTTP = srv.Client()
	n.Backoff = func(int) time.Duration { return time.Millisecond }
	n.Start()
	defer n.Stop()
	n.Notify("upload.failed", nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestVerifyRejects(t *testing.T) {
	body := []byte(`{"x":1}`)
	sig := Sign("k", body)
	if !Verify("k", body, sig) {
		t.Fatal("own signature should verify")
	}
	for _, bad := range []string{"", "sha256=", "sha256=zz", sig[7:], Sign("other", body)} {
		if Verify("k", body, bad) {
			t.Fatalf("signature %q should not verify", bad)
		}
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(-1) != time.Second || nextBackoff(3) != 8*time.Second || nextBackoff(50) != 256*time.Second {
		t.Fatal("unexpected backoff schedule")
	}
}

package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/gapfinder/internal/models"
)

func testAction() models.QueuedAction {
	return models.QueuedAction{
		ID:         "01J0000000000000000000000A",
		Type:       models.ActionFeedback,
		Payload:    json.RawMessage(`{"toolId":"canva","text":"great"}`),
		EnqueuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Priority:   models.PriorityHigh,
		RetryCount: 1,
	}
}

func TestClient_Deliver(t *testing.T) {
	var got syncPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", ct)
		}
		if key := r.Header.Get("Idempotency-Key"); key != testAction().ID {
			t.Errorf("Idempotency-Key = %q, want %q", key, testAction().ID)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(server.URL, 1, 1)
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

	if err := client.Deliver(context.Background(), testAction()); err != nil {
		t.Fatalf("Deliver() returned error: %v", err)
	}
	if got.Type != models.ActionFeedback || got.Priority != models.PriorityHigh {
		t.Errorf("unexpected payload header fields: %+v", got)
	}
	if got.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", got.Attempt)
	}
	if !strings.Contains(string(got.Payload), `"toolId":"canva"`) {
		t.Errorf("payload not forwarded: %s", got.Payload)
	}
}

func TestClient_Deliver_Non2xx(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"bad request", http.StatusBadRequest},
		{"redirect not followed as success", http.StatusNotModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("nope"))
			}))
			defer server.Close()

			client := New(server.URL, 1, 1)
			client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

			err := client.Deliver(context.Background(), testAction())
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if !strings.Contains(err.Error(), "sync status") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestClient_Deliver_EmptyEndpointDiscards(t *testing.T) {
	client := New("", 0, 0)
	if err := client.Deliver(context.Background(), testAction()); err != nil {
		t.Fatalf("Deliver() with no endpoint returned error: %v", err)
	}
}

func TestClient_Deliver_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(url, 1, 1)
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)

	if err := client.Deliver(context.Background(), testAction()); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestClient_Deliver_RateLimited(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, 0.001, 1)

	if err := client.Deliver(context.Background(), testAction()); err != nil {
		t.Fatalf("first Deliver() returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := client.Deliver(ctx, testAction()); err == nil {
		t.Fatal("expected rate limiter to reject the second delivery before the deadline")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

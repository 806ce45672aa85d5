package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/gapfinder/internal/models"
)

// maxErrorBody caps how much of a failed response is echoed into the error.
const maxErrorBody = 512

// Client posts queued actions to the sync endpoint.
type Client struct {
	endpoint    string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func New(endpoint string, ratePerSecond float64, burst int) *Client {
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

type syncPayload struct {
	ID         string            `json:"id"`
	Type       models.ActionType `json:"type"`
	Priority   models.Priority   `json:"priority"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
	Attempt    int               `json:"attempt"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
}

// Deliver sends one action. Without a configured endpoint the action is accepted and discarded.
func (c *Client) Deliver(ctx context.Context, action models.QueuedAction) error {
	if c.endpoint == "" {
		slog.Debug("No sync endpoint, discarding action", "id", action.ID, "type", action.Type)
		return nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	body, err := json.Marshal(syncPayload{
		ID:         action.ID,
		Type:       action.Type,
		Priority:   action.Priority,
		EnqueuedAt: action.EnqueuedAt,
		Attempt:    action.RetryCount + 1,
		Payload:    action.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal action %s: %w", action.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", action.ID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("sync status: %s, body: %s", resp.Status, bytes.TrimSpace(msg))
}

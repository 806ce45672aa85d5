package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/pauljones0/gapfinder/internal/models"
)

// MaxDeliveryAttempts is the number of failed deliveries after which an
// action is dropped.
const MaxDeliveryAttempts = 3

// FlushResult summarises one drain of the queue.
type FlushResult struct {
	Delivered int `json:"delivered"`
	Retried   int `json:"retried"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

// Enqueue stores action in the pending queue, assigning its id, sequence and
// timestamp. When online a flush is started in the background; its outcome is
// not awaited.
func (m *Manager) Enqueue(ctx context.Context, action models.QueuedAction) (models.QueuedAction, error) {
	if action.Priority == "" {
		action.Priority = models.PriorityMedium
	}
	if err := m.validate.ValidateStruct(action); err != nil {
		return models.QueuedAction{}, fmt.Errorf("invalid action: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return models.QueuedAction{}, fmt.Errorf("action id: %w", err)
	}

	m.mu.Lock()
	m.seq++
	action.Seq = m.seq
	online := m.online
	m.mu.Unlock()

	action.ID = id.String()
	action.EnqueuedAt = m.now().UTC()
	action.RetryCount = 0
	if err := m.Put(ctx, models.NamespaceQueue, action.ID, action); err != nil {
		return models.QueuedAction{}, err
	}
	slog.Debug("Action queued", "id", action.ID, "type", action.Type, "priority", action.Priority)

	if online {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if _, err := m.Flush(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("Background flush failed", "error", err)
			}
		}()
	}
	return action, nil
}

// Queue returns pending actions in delivery order.
func (m *Manager) Queue(ctx context.Context) []models.QueuedAction {
	actions := m.queued(ctx)
	sortQueue(actions)
	return actions
}

func (m *Manager) queued(ctx context.Context) []models.QueuedAction {
	entries := m.list(ctx, models.NamespaceQueue)
	actions := make([]models.QueuedAction, 0, len(entries))
	for _, e := range entries {
		var a models.QueuedAction
		if err := json.Unmarshal(e.Payload, &a); err != nil {
			slog.Warn("Discarding undecodable queued action", "key", e.Key, "error", err)
			m.Delete(ctx, models.NamespaceQueue, e.Key)
			continue
		}
		actions = append(actions, a)
	}
	return actions
}

func sortQueue(actions []models.QueuedAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		if ri, rj := actions[i].Priority.Rank(), actions[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return actions[i].Seq < actions[j].Seq
	})
}

// Flush drains the queue high, medium, low priority, oldest first within a
// priority, one action at a time. A failed action is re-stored with its retry
// count incremented, or dropped once it has failed MaxDeliveryAttempts times.
// Concurrent calls are serialised.
func (m *Manager) Flush(ctx context.Context) (FlushResult, error) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	var res FlushResult
	if m.deliverer == nil {
		res.Remaining = m.count(ctx, models.NamespaceQueue)
		return res, nil
	}

	actions := m.Queue(ctx)
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			res.Remaining += len(actions) - i
			return res, err
		}
		err := m.deliverer.Deliver(ctx, a)
		if err == nil {
			m.Delete(ctx, models.NamespaceQueue, a.ID)
			res.Delivered++
			continue
		}
		a.RetryCount++
		if a.RetryCount >= MaxDeliveryAttempts {
			slog.Warn("Dropping queued action after repeated failures",
				"id", a.ID, "type", a.Type, "attempts", a.RetryCount, "error", err)
			m.Delete(ctx, models.NamespaceQueue, a.ID)
			res.Dropped++
			continue
		}
		slog.Info("Queued action delivery failed, will retry", "id", a.ID, "attempt", a.RetryCount, "error", err)
		if perr := m.Put(ctx, models.NamespaceQueue, a.ID, a); perr != nil {
			return res, perr
		}
		res.Retried++
		res.Remaining++
	}
	if res.Delivered+res.Dropped > 0 {
		slog.Info("Queue flushed", "delivered", res.Delivered, "retried", res.Retried, "dropped", res.Dropped)
	}
	return res, nil
}

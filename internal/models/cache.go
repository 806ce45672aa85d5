package models

import (
	"encoding/json"
	"time"
)

type Namespace string

const (
	NamespaceRecords     Namespace = "records"
	NamespaceHistory     Namespace = "search-history"
	NamespacePreferences Namespace = "preferences"
	NamespaceQueue       Namespace = "sync-queue"
)

// Namespaces lists every logical store, in a stable order.
var Namespaces = []Namespace{NamespaceRecords, NamespaceHistory, NamespacePreferences, NamespaceQueue}

// CacheEntry is a stored payload. Staleness never deletes an entry.
type CacheEntry struct {
	Namespace Namespace       `json:"namespace"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	StoredAt  time.Time       `json:"storedAt"`
}

type ActionType string

const (
	ActionSearch   ActionType = "search"
	ActionFeedback ActionType = "feedback"
	ActionRequest  ActionType = "request"
	ActionExport   ActionType = "export"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities for flushing; lower ranks go first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// QueuedAction is a deferred side effect awaiting delivery.
type QueuedAction struct {
	ID         string          `json:"id"`
	Type       ActionType      `json:"type" validate:"required,oneof=search feedback request export"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Priority   Priority        `json:"priority" validate:"omitempty,oneof=low medium high"`
	RetryCount int             `json:"retryCount"`
	Seq        int64           `json:"seq"`
}

type OfflineStatus struct {
	IsOnline          bool      `json:"isOnline"`
	LastSync          time.Time `json:"lastSync"`
	CachedRecordCount int       `json:"cachedRecordCount"`
	QueuedActionCount int       `json:"queuedActionCount"`
	StorageUsedMB     float64   `json:"storageUsedMB"`
	StorageLimitMB    float64   `json:"storageLimitMB"`
	Degraded          bool      `json:"degraded"`
}

type HistoryEntry struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searchedAt"`
}

// ToolOverlay is per-user state keyed by tool id, stored apart from ToolRecord.
type ToolOverlay struct {
	ToolID   string    `json:"toolId"`
	Favorite bool      `json:"favorite"`
	Notes    string    `json:"notes,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	Updated  time.Time `json:"updated"`
}

package cache

import (
	"context"

	"github.com/pauljones0/gapfinder/internal/models"
)

// Backend is a durable namespaced key-value store.
type Backend interface {
	Get(ctx context.Context, namespace models.Namespace, key string) (models.CacheEntry, bool, error)
	Put(ctx context.Context, entry models.CacheEntry) error
	Delete(ctx context.Context, namespace models.Namespace, key string) error
	List(ctx context.Context, namespace models.Namespace) ([]models.CacheEntry, error)
	Count(ctx context.Context, namespace models.Namespace) (int, error)
	Clear(ctx context.Context, namespace models.Namespace) error
	Usage(ctx context.Context) (int64, error)
	Close() error
}

// Deliverer sends a queued action to its remote endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, action models.QueuedAction) error
}

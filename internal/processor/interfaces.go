package processor

import (
	"context"
	"time"

	"github.com/pauljones0/gapfinder/internal/cache"
	"github.com/pauljones0/gapfinder/internal/dataset"
	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/store"
)

// DatasetLoader abstracts the dataset source.
type DatasetLoader interface {
	Load(ctx context.Context) ([]models.ToolRecord, dataset.LoadReport, error)
}

// RecordCache abstracts the persisted records snapshot and sync bookkeeping.
type RecordCache interface {
	SaveRecords(ctx context.Context, records []models.ToolRecord) error
	LoadRecords(ctx context.Context) ([]models.ToolRecord, time.Time, bool)
	MarkSynced(t time.Time)
	Subscribe(fn func(cache.StatusEvent)) func()
}

// RecordStore abstracts the live snapshot holder.
type RecordStore interface {
	Current() *store.Snapshot
	Replace(records []models.ToolRecord, source string) *store.Snapshot
	ReplaceAt(records []models.ToolRecord, source string, loadedAt time.Time) *store.Snapshot
}

// Package processor keeps the record store populated from the dataset source,
// falling back to the persisted snapshot when the source is unreachable.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pauljones0/gapfinder/internal/config"
)

// Snapshot sources reported by Refresh besides the loader's own source.
const (
	SourceCache = "cache"
	SourceEmpty = "empty"
)

// RefreshResult describes what ended up installed after a refresh.
type RefreshResult struct {
	Source   string    `json:"source"`
	Records  int       `json:"records"`
	Skipped  int       `json:"skipped"`
	Fallback bool      `json:"fallback"`
	At       time.Time `json:"at"`
}

type Refresher struct {
	loader      DatasetLoader
	cache       RecordCache
	store       RecordStore
	maxStaleAge time.Duration
	now         func() time.Time

	mu sync.Mutex
}

func New(loader DatasetLoader, c RecordCache, s RecordStore, cfg *config.Config) *Refresher {
	maxStale := cfg.MaxStaleAge
	if maxStale <= 0 {
		slog.Warn("Invalid max stale age, using default", "maxStaleAge", maxStale, "default", "720h")
		maxStale = 30 * 24 * time.Hour
	}
	return &Refresher{
		loader:      loader,
		cache:       c,
		store:       s,
		maxStaleAge: maxStale,
		now:         time.Now,
	}
}

// Warm installs the persisted snapshot, if any, so searches work before the
// first network refresh completes. It reports whether a snapshot was installed.
func (r *Refresher) Warm(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, storedAt, ok := r.cache.LoadRecords(ctx)
	if !ok {
		slog.Info("No cached dataset snapshot to warm from")
		return false
	}
	if age := r.now().Sub(storedAt); age >= r.maxStaleAge {
		slog.Warn("Cached snapshot too old to warm from", "age", age.Round(time.Second), "maxStaleAge", r.maxStaleAge)
		return false
	}
	r.store.ReplaceAt(recs, SourceCache, storedAt)
	slog.Info("Warmed store from cached snapshot", "records", len(recs), "storedAt", storedAt)
	return true
}

// Refresh loads the dataset and swaps it in. When loading fails the error is
// returned alongside whatever fallback got installed.
func (r *Refresher) Refresh(ctx context.Context) (RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, report, err := r.loader.Load(ctx)
	if err != nil {
		return r.fallback(ctx, err), fmt.Errorf("failed to refresh dataset: %w", err)
	}

	if err := r.cache.SaveRecords(ctx, recs); err != nil {
		slog.Warn("Failed to persist dataset snapshot", "error", err)
	}
	snap := r.store.ReplaceAt(recs, report.Source, r.now())
	r.cache.MarkSynced(snap.LoadedAt)

	slog.Info("Dataset refreshed", "source", report.Source, "format", report.Format,
		"loaded", report.Loaded, "skipped", report.Skipped, "droppedNested", report.DroppedNested)
	return RefreshResult{
		Source:  report.Source,
		Records: snap.Len(),
		Skipped: report.Skipped,
		At:      snap.LoadedAt,
	}, nil
}

func (r *Refresher) fallback(ctx context.Context, cause error) RefreshResult {
	now := r.now()
	if recs, storedAt, ok := r.cache.LoadRecords(ctx); ok {
		age := now.Sub(storedAt)
		if age < r.maxStaleAge {
			snap := r.store.ReplaceAt(recs, SourceCache, storedAt)
			slog.Warn("Dataset refresh failed, serving cached snapshot", "error", cause, "age", age.Round(time.Second))
			return RefreshResult{Source: SourceCache, Records: snap.Len(), Fallback: true, At: snap.LoadedAt}
		}
		slog.Warn("Cached snapshot too old to serve", "age", age.Round(time.Second), "maxStaleAge", r.maxStaleAge)
	}

	// A snapshot's LoadedAt is when its records were fetched, so a warmed
	// cache ages out here just like one served from the fallback above.
	if cur := r.store.Current(); cur != nil && now.Sub(cur.LoadedAt) < r.maxStaleAge {
		slog.Warn("Dataset refresh failed, keeping current snapshot", "error", cause, "source", cur.Source)
		return RefreshResult{Source: cur.Source, Records: cur.Len(), Fallback: true, At: cur.LoadedAt}
	}

	snap := r.store.ReplaceAt(nil, SourceEmpty, now)
	slog.Warn("Dataset refresh failed with nothing cached, serving empty store", "error", cause)
	return RefreshResult{Source: SourceEmpty, Fallback: true, At: snap.LoadedAt}
}

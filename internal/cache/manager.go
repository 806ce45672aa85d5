// Package cache layers a bounded in-memory hot cache over a durable Backend
// and owns the pending-sync queue and online/offline state.
//
// Durable failures never reach callers: the first failure switches the
// manager to an in-process store for the rest of the session.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/storage"
	"github.com/pauljones0/gapfinder/internal/validator"
)

const defaultHotCacheSize = 50

type Options struct {
	HotCacheSize   int
	StorageLimitMB float64
	Online         bool
	Now            func() time.Time
}

// StatusEvent is delivered to observers on every online/offline transition.
type StatusEvent struct {
	Online bool
	At     time.Time
}

type Manager struct {
	mu        sync.Mutex
	backend   Backend
	degraded  bool
	online    bool
	lastSync  time.Time
	seq       int64
	observers map[int]func(StatusEvent)
	nextObs   int

	hot            *lru.Cache[string, models.CacheEntry]
	deliverer      Deliverer
	validate       *validator.Validator
	storageLimitMB float64
	now            func() time.Time

	flushMu   sync.Mutex
	historyMu sync.Mutex
	wg        sync.WaitGroup
}

// New creates a manager over backend. deliverer may be nil, in which case
// queued actions are kept until one is configured.
func New(ctx context.Context, backend Backend, deliverer Deliverer, opts Options) (*Manager, error) {
	size := opts.HotCacheSize
	if size <= 0 {
		size = defaultHotCacheSize
	}
	hot, err := lru.New[string, models.CacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("hot cache: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		backend:        backend,
		online:         opts.Online,
		observers:      make(map[int]func(StatusEvent)),
		hot:            hot,
		deliverer:      deliverer,
		validate:       validator.New(),
		storageLimitMB: opts.StorageLimitMB,
		now:            now,
	}
	for _, a := range m.queued(ctx) {
		if a.Seq > m.seq {
			m.seq = a.Seq
		}
	}
	return m, nil
}

// IsFresh reports whether entry is younger than maxAge at now. An entry aged
// exactly maxAge is stale.
func IsFresh(entry models.CacheEntry, maxAge time.Duration, now time.Time) bool {
	return now.Sub(entry.StoredAt) < maxAge
}

func hotKey(ns models.Namespace, key string) string {
	return string(ns) + "/" + key
}

func (m *Manager) current() Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend
}

// fallback swaps in a memory backend seeded from the hot cache.
func (m *Manager) fallback(op string, err error) Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.degraded {
		return m.backend
	}
	slog.Warn("Durable cache storage failed, continuing in memory for this session", "op", op, "error", err)
	mem := storage.NewMemory()
	for _, k := range m.hot.Keys() {
		if e, ok := m.hot.Peek(k); ok {
			_ = mem.Put(context.Background(), e)
		}
	}
	if cerr := m.backend.Close(); cerr != nil {
		slog.Debug("Closing failed backend", "error", cerr)
	}
	m.backend = mem
	m.degraded = true
	return mem
}

// withBackend runs fn against the durable backend, retrying once on the
// fallback store if it fails. Context errors are returned untouched.
func (m *Manager) withBackend(ctx context.Context, op string, fn func(Backend) error) error {
	err := fn(m.current())
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fn(m.fallback(op, err))
}

// GetEntry reads a raw entry, hot cache first. A durable hit is promoted.
func (m *Manager) GetEntry(ctx context.Context, ns models.Namespace, key string) (models.CacheEntry, bool) {
	if e, ok := m.hot.Get(hotKey(ns, key)); ok {
		return e, true
	}
	var entry models.CacheEntry
	var found bool
	err := m.withBackend(ctx, "get", func(b Backend) error {
		var err error
		entry, found, err = b.Get(ctx, ns, key)
		return err
	})
	if err != nil || !found {
		return models.CacheEntry{}, false
	}
	m.hot.Add(hotKey(ns, key), entry)
	return entry, true
}

// Get decodes the entry at ns/key into dst. The error is only non-nil when the
// stored payload cannot be decoded.
func (m *Manager) Get(ctx context.Context, ns models.Namespace, key string, dst any) (bool, error) {
	e, ok := m.GetEntry(ctx, ns, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", ns, key, err)
	}
	return true, nil
}

// Put encodes v and writes it through to durable storage and the hot cache.
func (m *Manager) Put(ctx context.Context, ns models.Namespace, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", ns, key, err)
	}
	m.PutRaw(ctx, ns, key, payload)
	return nil
}

// PutRaw stores an already encoded payload.
func (m *Manager) PutRaw(ctx context.Context, ns models.Namespace, key string, payload json.RawMessage) models.CacheEntry {
	entry := models.CacheEntry{
		Namespace: ns,
		Key:       key,
		Payload:   payload,
		StoredAt:  m.now().UTC().Truncate(time.Millisecond),
	}
	if err := m.withBackend(ctx, "put", func(b Backend) error { return b.Put(ctx, entry) }); err != nil {
		slog.Debug("Cache put abandoned", "namespace", ns, "key", key, "error", err)
	}
	m.hot.Add(hotKey(ns, key), entry)
	return entry
}

func (m *Manager) Delete(ctx context.Context, ns models.Namespace, key string) {
	m.hot.Remove(hotKey(ns, key))
	if err := m.withBackend(ctx, "delete", func(b Backend) error { return b.Delete(ctx, ns, key) }); err != nil {
		slog.Debug("Cache delete abandoned", "namespace", ns, "key", key, "error", err)
	}
}

func (m *Manager) list(ctx context.Context, ns models.Namespace) []models.CacheEntry {
	var out []models.CacheEntry
	err := m.withBackend(ctx, "list", func(b Backend) error {
		var err error
		out, err = b.List(ctx, ns)
		return err
	})
	if err != nil {
		return nil
	}
	return out
}

func (m *Manager) count(ctx context.Context, ns models.Namespace) int {
	var n int
	if err := m.withBackend(ctx, "count", func(b Backend) error {
		var err error
		n, err = b.Count(ctx, ns)
		return err
	}); err != nil {
		return 0
	}
	return n
}

// Online reports the last known connectivity state.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Degraded reports whether the manager fell back to in-memory storage.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// MarkSynced records a successful dataset refresh.
func (m *Manager) MarkSynced(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.lastSync) {
		m.lastSync = t
	}
}

// Subscribe registers fn for online/offline transitions. The returned func
// removes the registration.
func (m *Manager) Subscribe(fn func(StatusEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

// SetOnline records a connectivity transition. Going online flushes the queue
// and then notifies observers; going offline only notifies. Repeated reports
// of the same state are ignored.
func (m *Manager) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if !changed {
		return
	}

	slog.Info("Connectivity changed", "online", online)
	if online {
		if _, err := m.Flush(ctx); err != nil {
			slog.Warn("Flush after reconnect failed", "error", err)
		}
	}

	m.mu.Lock()
	fns := make([]func(StatusEvent), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	ev := StatusEvent{Online: online, At: m.now()}
	for _, fn := range fns {
		fn(ev)
	}
}

// Status reports storage and queue accounting.
func (m *Manager) Status(ctx context.Context) models.OfflineStatus {
	var used int64
	if err := m.withBackend(ctx, "usage", func(b Backend) error {
		var err error
		used, err = b.Usage(ctx)
		return err
	}); err != nil {
		used = 0
	}

	m.mu.Lock()
	st := models.OfflineStatus{
		IsOnline:       m.online,
		LastSync:       m.lastSync,
		StorageLimitMB: m.storageLimitMB,
		Degraded:       m.degraded,
	}
	m.mu.Unlock()

	st.CachedRecordCount = m.cachedRecordCount(ctx)
	st.QueuedActionCount = m.count(ctx, models.NamespaceQueue)
	st.StorageUsedMB = float64(used) / (1 << 20)
	return st
}

// ClearCache drops the records snapshot, search history and hot cache.
// Preferences and the pending queue survive.
func (m *Manager) ClearCache(ctx context.Context) {
	for _, ns := range []models.Namespace{models.NamespaceRecords, models.NamespaceHistory} {
		if err := m.withBackend(ctx, "clear", func(b Backend) error { return b.Clear(ctx, ns) }); err != nil {
			slog.Debug("Cache clear abandoned", "namespace", ns, "error", err)
		}
	}
	m.hot.Purge()
	slog.Info("Cache cleared")
}

// Close waits for background flushes and closes the backend.
func (m *Manager) Close() error {
	m.wg.Wait()
	return m.current().Close()
}

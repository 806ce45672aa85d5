package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/storage"
)

// countingBackend wraps the memory backend and counts durable reads.
type countingBackend struct {
	*storage.Memory
	mu   sync.Mutex
	gets int
}

func (c *countingBackend) Get(ctx context.Context, ns models.Namespace, key string) (models.CacheEntry, bool, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Memory.Get(ctx, ns, key)
}

func (c *countingBackend) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

// failingBackend simulates storage that is unavailable.
type failingBackend struct{}

var errUnavailable = errors.New("storage unavailable")

func (failingBackend) Get(context.Context, models.Namespace, string) (models.CacheEntry, bool, error) {
	return models.CacheEntry{}, false, errUnavailable
}
func (failingBackend) Put(context.Context, models.CacheEntry) error { return errUnavailable }
func (failingBackend) Delete(context.Context, models.Namespace, string) error {
	return errUnavailable
}
func (failingBackend) List(context.Context, models.Namespace) ([]models.CacheEntry, error) {
	return nil, errUnavailable
}
func (failingBackend) Count(context.Context, models.Namespace) (int, error) { return 0, errUnavailable }
func (failingBackend) Clear(context.Context, models.Namespace) error        { return errUnavailable }
func (failingBackend) Usage(context.Context) (int64, error)                 { return 0, errUnavailable }
func (failingBackend) Close() error                                         { return nil }

// mockDeliverer records delivery attempts and fails while fail returns true.
type mockDeliverer struct {
	mu    sync.Mutex
	calls []models.QueuedAction
	fail  func(models.QueuedAction) bool
}

func (d *mockDeliverer) Deliver(_ context.Context, a models.QueuedAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, a)
	if d.fail != nil && d.fail(a) {
		return fmt.Errorf("endpoint rejected %s", a.ID)
	}
	return nil
}

func (d *mockDeliverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(t *testing.T, b Backend, d Deliverer, online bool, size int) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	m, err := New(context.Background(), b, d, Options{
		HotCacheSize:   size,
		StorageLimitMB: 50,
		Online:         online,
		Now:            clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, clock
}

func TestIsFresh(t *testing.T) {
	now := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	maxAge := 7 * 24 * time.Hour
	tests := []struct {
		name     string
		storedAt time.Time
		want     bool
	}{
		{"just stored", now, true},
		{"one nanosecond inside", now.Add(-maxAge + time.Nanosecond), true},
		{"exactly max age is stale", now.Add(-maxAge), false},
		{"older", now.Add(-maxAge - time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(models.CacheEntry{StoredAt: tt.storedAt}, maxAge, now); got != tt.want {
				t.Errorf("IsFresh = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_RoundTripAfterEviction(t *testing.T) {
	b := &countingBackend{Memory: storage.NewMemory()}
	m, _ := newManager(t, b, nil, false, 1)
	ctx := context.Background()

	type value struct {
		Name  string
		Votes int
	}
	want := value{Name: "Canva", Votes: 120}
	if err := m.Put(ctx, models.NamespaceRecords, "a", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(ctx, models.NamespaceRecords, "b", value{Name: "Figma"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got value
	ok, err := m.Get(ctx, models.NamespaceRecords, "a", &got)
	if !ok || err != nil || got != want {
		t.Fatalf("Get after eviction = %+v, %v, %v", got, ok, err)
	}
	if b.getCount() != 1 {
		t.Errorf("durable reads = %d, want 1", b.getCount())
	}

	// The durable hit was promoted; the next read is served from memory.
	if _, ok := m.GetEntry(ctx, models.NamespaceRecords, "a"); !ok {
		t.Fatal("promoted entry missing")
	}
	if b.getCount() != 1 {
		t.Errorf("durable reads after promotion = %d, want 1", b.getCount())
	}
}

func TestManager_NamespacesAreSeparate(t *testing.T) {
	m, _ := newManager(t, storage.NewMemory(), nil, false, 10)
	ctx := context.Background()
	m.Put(ctx, models.NamespaceRecords, "k", "records")
	m.Put(ctx, models.NamespacePreferences, "k", "prefs")

	var s string
	m.Get(ctx, models.NamespaceRecords, "k", &s)
	if s != "records" {
		t.Errorf("records/k = %q", s)
	}
	if ok, _ := m.Get(ctx, models.NamespaceHistory, "k", &s); ok {
		t.Error("history/k should not exist")
	}
}

func TestManager_DegradesOnDurableFailure(t *testing.T) {
	m, _ := newManager(t, failingBackend{}, nil, false, 10)
	ctx := context.Background()

	if err := m.Put(ctx, models.NamespacePreferences, "x", map[string]int{"n": 1}); err != nil {
		t.Fatalf("Put should not surface storage errors: %v", err)
	}
	var got map[string]int
	if ok, err := m.Get(ctx, models.NamespacePreferences, "x", &got); !ok || err != nil || got["n"] != 1 {
		t.Fatalf("Get = %v, %v, %v", got, ok, err)
	}
	if !m.Degraded() {
		t.Error("expected degraded mode")
	}

	if _, err := m.Enqueue(ctx, models.QueuedAction{Type: models.ActionFeedback}); err != nil {
		t.Fatalf("Enqueue in degraded mode: %v", err)
	}
	st := m.Status(ctx)
	if !st.Degraded || st.QueuedActionCount != 1 {
		t.Errorf("Status = %+v", st)
	}
}

func TestManager_HotEntriesSurviveFallback(t *testing.T) {
	b := &switchableBackend{Memory: storage.NewMemory()}
	m, _ := newManager(t, b, nil, false, 10)
	ctx := context.Background()
	m.Put(ctx, models.NamespacePreferences, "kept", "v")

	b.broken = true
	m.Put(ctx, models.NamespacePreferences, "other", "w")
	if !m.Degraded() {
		t.Fatal("expected degraded mode")
	}
	m.hot.Purge()
	var s string
	if ok, _ := m.Get(ctx, models.NamespacePreferences, "kept", &s); !ok || s != "v" {
		t.Errorf("hot entry lost on fallback: %q, %v", s, ok)
	}
}

type switchableBackend struct {
	*storage.Memory
	broken bool
}

func (s *switchableBackend) Put(ctx context.Context, e models.CacheEntry) error {
	if s.broken {
		return errUnavailable
	}
	return s.Memory.Put(ctx, e)
}

func TestManager_FlushOrder(t *testing.T) {
	d := &mockDeliverer{}
	m, clock := newManager(t, storage.NewMemory(), d, false, 10)
	ctx := context.Background()

	for _, p := range []models.Priority{models.PriorityLow, models.PriorityHigh, models.PriorityMedium, models.PriorityHigh} {
		if _, err := m.Enqueue(ctx, models.QueuedAction{Type: models.ActionSearch, Priority: p}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		clock.Advance(time.Second)
	}

	res, err := m.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if res.Delivered != 4 || res.Remaining != 0 {
		t.Errorf("result = %+v", res)
	}
	var got []string
	for _, a := range d.calls {
		got = append(got, fmt.Sprintf("%s/%d", a.Priority, a.Seq))
	}
	want := []string{"high/2", "high/4", "medium/3", "low/1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
	if n := m.Status(ctx).QueuedActionCount; n != 0 {
		t.Errorf("queue depth = %d", n)
	}
}

func TestManager_RetryCeiling(t *testing.T) {
	d := &mockDeliverer{fail: func(models.QueuedAction) bool { return true }}
	m, _ := newManager(t, storage.NewMemory(), d, false, 10)
	ctx := context.Background()
	if _, err := m.Enqueue(ctx, models.QueuedAction{Type: models.ActionExport}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		res, _ := m.Flush(ctx)
		if res.Retried != 1 || res.Dropped != 0 {
			t.Fatalf("flush %d result = %+v", attempt, res)
		}
		q := m.Queue(ctx)
		if len(q) != 1 || q[0].RetryCount != attempt {
			t.Fatalf("after flush %d queue = %+v", attempt, q)
		}
	}

	res, _ := m.Flush(ctx)
	if res.Dropped != 1 {
		t.Fatalf("third failure should drop, got %+v", res)
	}
	if q := m.Queue(ctx); len(q) != 0 {
		t.Fatalf("queue not empty: %+v", q)
	}

	m.Flush(ctx)
	if d.callCount() != 3 {
		t.Errorf("delivery attempts = %d, want exactly 3", d.callCount())
	}
}

func TestManager_PartialFailureKeepsOthersFlowing(t *testing.T) {
	d := &mockDeliverer{fail: func(a models.QueuedAction) bool { return a.Type == models.ActionRequest }}
	m, _ := newManager(t, storage.NewMemory(), d, false, 10)
	ctx := context.Background()
	m.Enqueue(ctx, models.QueuedAction{Type: models.ActionRequest, Priority: models.PriorityHigh})
	m.Enqueue(ctx, models.QueuedAction{Type: models.ActionFeedback})

	res, err := m.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if res.Delivered != 1 || res.Retried != 1 || res.Remaining != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestManager_EnqueueOnlineFlushesInBackground(t *testing.T) {
	d := &mockDeliverer{}
	m, _ := newManager(t, storage.NewMemory(), d, true, 10)
	ctx := context.Background()

	a, err := m.Enqueue(ctx, models.QueuedAction{Type: models.ActionFeedback, Payload: []byte(`{"ok":true}`)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if a.ID == "" || a.Seq != 1 || a.EnqueuedAt.IsZero() || a.Priority != models.PriorityMedium {
		t.Errorf("enqueued action = %+v", a)
	}
	m.wg.Wait()
	if d.callCount() != 1 {
		t.Errorf("deliveries = %d, want 1", d.callCount())
	}
	if q := m.Queue(ctx); len(q) != 0 {
		t.Errorf("queue = %+v", q)
	}
}

func TestManager_EnqueueRejectsInvalid(t *testing.T) {
	m, _ := newManager(t, storage.NewMemory(), nil, false, 10)
	ctx := context.Background()
	for _, a := range []models.QueuedAction{
		{Type: "telemetry"},
		{Type: models.ActionSearch, Priority: "urgent"},
		{},
	} {
		if _, err := m.Enqueue(ctx, a); err == nil {
			t.Errorf("Enqueue(%+v) should fail", a)
		}
	}
}

func TestManager_NoDelivererKeepsQueue(t *testing.T) {
	m, _ := newManager(t, storage.NewMemory(), nil, false, 10)
	ctx := context.Background()
	m.Enqueue(ctx, models.QueuedAction{Type: models.ActionSearch})
	res, err := m.Flush(ctx)
	if err != nil || res.Remaining != 1 {
		t.Errorf("Flush = %+v, %v", res, err)
	}
}

func TestManager_SequenceResumesFromStoredQueue(t *testing.T) {
	b := storage.NewMemory()
	first, _ := newManager(t, b, nil, false, 10)
	ctx := context.Background()
	first.Enqueue(ctx, models.QueuedAction{Type: models.ActionSearch})
	first.Enqueue(ctx, models.QueuedAction{Type: models.ActionSearch})

	second, _ := newManager(t, b, nil, false, 10)
	a, err := second.Enqueue(ctx, models.QueuedAction{Type: models.ActionSearch})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if a.Seq != 3 {
		t.Errorf("Seq = %d, want 3", a.Seq)
	}
}

func TestManager_SetOnline(t *testing.T) {
	d := &mockDeliverer{}
	m, _ := newManager(t, storage.NewMemory(), d, false, 10)
	ctx := context.Background()
	m.Enqueue(ctx, models.QueuedAction{Type: models.ActionFeedback})

	var events []StatusEvent
	var deliveredAtNotify int
	unsubscribe := m.Subscribe(func(ev StatusEvent) {
		events = append(events, ev)
		deliveredAtNotify = d.callCount()
	})

	m.SetOnline(ctx, true)
	if len(events) != 1 || !events[0].Online {
		t.Fatalf("events = %+v", events)
	}
	if deliveredAtNotify != 1 {
		t.Errorf("observers must run after the flush; deliveries seen = %d", deliveredAtNotify)
	}

	m.SetOnline(ctx, true)
	if len(events) != 1 {
		t.Errorf("repeated online report should not notify, events = %d", len(events))
	}

	m.Enqueue(ctx, models.QueuedAction{Type: models.ActionFeedback})
	m.wg.Wait()
	m.SetOnline(ctx, false)
	if len(events) != 2 || events[1].Online {
		t.Errorf("events = %+v", events)
	}
	if m.Status(ctx).IsOnline {
		t.Error("status should report offline")
	}

	unsubscribe()
	m.SetOnline(ctx, true)
	if len(events) != 2 {
		t.Errorf("unsubscribed observer was called")
	}
}

func TestManager_OfflineTransitionKeepsData(t *testing.T) {
	m, _ := newManager(t, storage.NewMemory(), &mockDeliverer{}, true, 10)
	ctx := context.Background()
	m.SaveRecords(ctx, []models.ToolRecord{{ID: "a", Name: "A"}})
	m.SetOnline(ctx, false)
	m.Enqueue(ctx, models.QueuedAction{Type: models.ActionSearch})

	st := m.Status(ctx)
	if st.IsOnline || st.CachedRecordCount != 1 || st.QueuedActionCount != 1 {
		t.Errorf("Status = %+v", st)
	}
}

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/pauljones0/gapfinder/internal/models"
)

// Memory is a process-local backend. It is the fallback when durable storage
// fails and the backend for CACHE_BACKEND=memory.
type Memory struct {
	mu   sync.RWMutex
	data map[models.Namespace]map[string]models.CacheEntry
}

func NewMemory() *Memory {
	return &Memory{data: make(map[models.Namespace]map[string]models.CacheEntry)}
}

func (m *Memory) Get(_ context.Context, namespace models.Namespace, key string) (models.CacheEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[namespace][key]
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	return cloneEntry(e), true, nil
}

func (m *Memory) Put(_ context.Context, entry models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[entry.Namespace]
	if !ok {
		ns = make(map[string]models.CacheEntry)
		m.data[entry.Namespace] = ns
	}
	ns[entry.Key] = cloneEntry(entry)
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace models.Namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[namespace], key)
	return nil
}

func (m *Memory) List(_ context.Context, namespace models.Namespace) ([]models.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CacheEntry, 0, len(m.data[namespace]))
	for _, e := range m.data[namespace] {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Count(_ context.Context, namespace models.Namespace) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[namespace]), nil
}

func (m *Memory) Clear(_ context.Context, namespace models.Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, namespace)
	return nil
}

// Usage approximates stored bytes as the sum of key and payload lengths.
func (m *Memory) Usage(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, ns := range m.data {
		for k, e := range ns {
			n += int64(len(k) + len(e.Payload))
		}
	}
	return n, nil
}

func (m *Memory) Close() error {
	return nil
}

func cloneEntry(e models.CacheEntry) models.CacheEntry {
	e.Payload = append([]byte(nil), e.Payload...)
	return e
}

package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/util"
)

const (
	recordsKey = "snapshot"
	historyKey = "recent"
	// MaxHistory is the number of distinct recent queries retained.
	MaxHistory = 50
)

// SaveRecords persists the dataset snapshot.
func (m *Manager) SaveRecords(ctx context.Context, records []models.ToolRecord) error {
	return m.Put(ctx, models.NamespaceRecords, recordsKey, records)
}

// LoadRecords returns the persisted dataset snapshot and when it was stored.
func (m *Manager) LoadRecords(ctx context.Context) ([]models.ToolRecord, time.Time, bool) {
	e, ok := m.GetEntry(ctx, models.NamespaceRecords, recordsKey)
	if !ok {
		return nil, time.Time{}, false
	}
	var recs []models.ToolRecord
	if err := json.Unmarshal(e.Payload, &recs); err != nil {
		return nil, time.Time{}, false
	}
	return recs, e.StoredAt, true
}

func (m *Manager) cachedRecordCount(ctx context.Context) int {
	e, ok := m.GetEntry(ctx, models.NamespaceRecords, recordsKey)
	if !ok {
		return 0
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(e.Payload, &raw); err != nil {
		return 0
	}
	return len(raw)
}

// AddHistory records a query as the most recent search. Repeating a query
// moves it to the front instead of duplicating it.
func (m *Manager) AddHistory(ctx context.Context, query string) {
	q := strings.TrimSpace(query)
	if q == "" {
		return
	}
	m.historyMu.Lock()
	defer m.historyMu.Unlock()

	prev := m.History(ctx)
	next := make([]models.HistoryEntry, 0, len(prev)+1)
	next = append(next, models.HistoryEntry{Query: q, SearchedAt: m.now().UTC()})
	norm := util.NormalizeText(q)
	for _, h := range prev {
		if util.NormalizeText(h.Query) == norm {
			continue
		}
		next = append(next, h)
		if len(next) == MaxHistory {
			break
		}
	}
	_ = m.Put(ctx, models.NamespaceHistory, historyKey, next)
}

// History returns recent queries, newest first.
func (m *Manager) History(ctx context.Context) []models.HistoryEntry {
	var h []models.HistoryEntry
	if ok, err := m.Get(ctx, models.NamespaceHistory, historyKey, &h); !ok || err != nil {
		return []models.HistoryEntry{}
	}
	return h
}

// Overlay returns the per-user overlay for a tool.
func (m *Manager) Overlay(ctx context.Context, toolID string) (models.ToolOverlay, bool) {
	var o models.ToolOverlay
	if ok, err := m.Get(ctx, models.NamespacePreferences, toolID, &o); !ok || err != nil {
		return models.ToolOverlay{ToolID: toolID}, false
	}
	return o, true
}

// SetOverlay stores an overlay, or removes it when it carries no state.
func (m *Manager) SetOverlay(ctx context.Context, o models.ToolOverlay) models.ToolOverlay {
	o.Notes = strings.TrimSpace(o.Notes)
	o.Tags = util.SplitList(strings.Join(o.Tags, ","))
	if !o.Favorite && o.Notes == "" && len(o.Tags) == 0 {
		m.Delete(ctx, models.NamespacePreferences, o.ToolID)
		return models.ToolOverlay{ToolID: o.ToolID}
	}
	o.Updated = m.now().UTC()
	_ = m.Put(ctx, models.NamespacePreferences, o.ToolID, o)
	return o
}

// SetFavorite toggles the favorite flag, keeping notes and tags.
func (m *Manager) SetFavorite(ctx context.Context, toolID string, favorite bool) models.ToolOverlay {
	o, _ := m.Overlay(ctx, toolID)
	o.ToolID = toolID
	o.Favorite = favorite
	return m.SetOverlay(ctx, o)
}

// Favorites lists favorited overlays ordered by tool id.
func (m *Manager) Favorites(ctx context.Context) []models.ToolOverlay {
	out := []models.ToolOverlay{}
	for _, e := range m.list(ctx, models.NamespacePreferences) {
		var o models.ToolOverlay
		if err := json.Unmarshal(e.Payload, &o); err != nil || !o.Favorite {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID < out[j].ToolID })
	return out
}

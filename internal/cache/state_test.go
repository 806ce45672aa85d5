package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/storage"
)

func TestManager_Records(t *testing.T) {
	m, clock := newManager(t, storage.NewMemory(), nil, false, 10)
	ctx := context.Background()

	if _, _, ok := m.LoadRecords(ctx); ok {
		t.Fatal("expected no records before save")
	}
	recs := []models.ToolRecord{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}
	if err := m.SaveRecords(ctx, recs); err != nil {
		t.Fatalf("SaveRecords: %v", err)
	}
	got, storedAt, ok := m.LoadRecords(ctx)
	if !ok || len(got) != 3 || got[1].ID != "b" {
		t.Fatalf("LoadRecords = %+v, %v", got, ok)
	}
	if !storedAt.Equal(clock.Now()) {
		t.Errorf("storedAt = %v, want %v", storedAt, clock.Now())
	}

	m.MarkSynced(clock.Now())
	st := m.Status(ctx)
	if st.CachedRecordCount != 3 || !st.LastSync.Equal(clock.Now()) || st.StorageLimitMB != 50 || st.StorageUsedMB <= 0 {
		t.Errorf("Status = %+v", st)
	}
}

func TestManager_History(t *testing.T) {
	m, clock := newManager(t, storage.NewMemory(), nil, false, 10)
	ctx := context.Background()

	for i := 0; i < MaxHistory+5; i++ {
		m.AddHistory(ctx, fmt.Sprintf("query %d", i))
		clock.Advance(time.Second)
	}
	h := m.History(ctx)
	if len(h) != MaxHistory {
		t.Fatalf("len = %d, want %d", len(h), MaxHistory)
	}
	if h[0].Query != "query 54" || h[MaxHistory-1].Query != "query 5" {
		t.Errorf("newest/oldest = %q/%q", h[0].Query, h[MaxHistory-1].Query)
	}

	m.AddHistory(ctx, "  QUERY 20 ")
	h = m.History(ctx)
	if len(h) != MaxHistory || h[0].Query != "QUERY 20" {
		t.Errorf("repeat should move to front: %q, len %d", h[0].Query, len(h))
	}
	count := 0
	for _, e := range h {
		if e.Query == "query 20" || e.Query == "QUERY 20" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("repeated query appears %d times", count)
	}

	m.AddHistory(ctx, "   ")
	if got := m.History(ctx); got[0].Query != "QUERY 20" {
		t.Errorf("blank query was recorded")
	}
}

func TestManager_Overlays(t *testing.T) {
	m, _ := newManager(t, storage.NewMemory(), nil, false, 10)
	ctx := context.Background()

	if _, ok := m.Overlay(ctx, "canva"); ok {
		t.Fatal("unexpected overlay")
	}
	m.SetOverlay(ctx, models.ToolOverlay{ToolID: "canva", Notes: " watch pricing ", Tags: []string{"design", " ", "pwa"}})
	o, ok := m.Overlay(ctx, "canva")
	if !ok || o.Notes != "watch pricing" || len(o.Tags) != 2 || o.Favorite {
		t.Errorf("Overlay = %+v, %v", o, ok)
	}

	m.SetFavorite(ctx, "figma", true)
	m.SetFavorite(ctx, "canva", true)
	favs := m.Favorites(ctx)
	if len(favs) != 2 || favs[0].ToolID != "canva" || favs[0].Notes != "watch pricing" {
		t.Errorf("Favorites = %+v", favs)
	}

	m.SetFavorite(ctx, "figma", false)
	if _, ok := m.Overlay(ctx, "figma"); ok {
		t.Error("empty overlay should be removed")
	}
	if favs := m.Favorites(ctx); len(favs) != 1 {
		t.Errorf("Favorites after unfavorite = %+v", favs)
	}
}

func TestManager_ClearCache(t *testing.T) {
	m, _ := newManager(t, storage.NewMemory(), nil, false, 10)
	ctx := context.Background()
	m.SaveRecords(ctx, []models.ToolRecord{{ID: "a", Name: "A"}})
	m.AddHistory(ctx, "canva")
	m.SetFavorite(ctx, "canva", true)
	m.Enqueue(ctx, models.QueuedAction{Type: models.ActionRequest})

	m.ClearCache(ctx)

	if _, _, ok := m.LoadRecords(ctx); ok {
		t.Error("records survived ClearCache")
	}
	if h := m.History(ctx); len(h) != 0 {
		t.Errorf("history survived ClearCache: %+v", h)
	}
	if favs := m.Favorites(ctx); len(favs) != 1 {
		t.Errorf("preferences should survive ClearCache: %+v", favs)
	}
	if q := m.Queue(ctx); len(q) != 1 {
		t.Errorf("queue should survive ClearCache: %+v", q)
	}
}

// Package store holds the active tool dataset as an immutable snapshot.
package store

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pauljones0/gapfinder/internal/index"
	"github.com/pauljones0/gapfinder/internal/models"
)

// Snapshot is a fully built, read-only view of the dataset. Callers must not
// mutate records reached through it.
type Snapshot struct {
	Index    *index.Index
	LoadedAt time.Time
	Source   string

	records []models.ToolRecord

	byID       map[string]int
	byName     map[string]int
	categories []string
}

// NewSnapshot indexes records. Later duplicates of an id are dropped.
func NewSnapshot(records []models.ToolRecord, opts index.Options, source string, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		LoadedAt: loadedAt,
		Source:   source,
		byID:     make(map[string]int, len(records)),
		byName:   make(map[string]int, len(records)),
	}
	seenCat := make(map[string]bool)
	for _, rec := range records {
		if _, dup := s.byID[rec.ID]; dup {
			continue
		}
		pos := len(s.records)
		s.records = append(s.records, rec)
		s.byID[rec.ID] = pos
		if key := strings.ToLower(rec.Name); key != "" {
			if _, ok := s.byName[key]; !ok {
				s.byName[key] = pos
			}
		}
		if c := strings.TrimSpace(rec.Category); c != "" && !seenCat[strings.ToLower(c)] {
			seenCat[strings.ToLower(c)] = true
			s.categories = append(s.categories, c)
		}
	}
	sort.Slice(s.categories, func(i, j int) bool {
		return strings.ToLower(s.categories[i]) < strings.ToLower(s.categories[j])
	})
	s.Index = index.Build(s.records, opts)
	return s
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Records returns the record slice. It must not be modified.
func (s *Snapshot) Records() []models.ToolRecord {
	return s.records
}

// At returns the record at an index position.
func (s *Snapshot) At(pos int) *models.ToolRecord {
	return &s.records[pos]
}

// Lookup returns the record with the given id.
func (s *Snapshot) Lookup(id string) (*models.ToolRecord, bool) {
	pos, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.records[pos], true
}

// ByName looks up a record by case-insensitive name.
func (s *Snapshot) ByName(name string) (*models.ToolRecord, bool) {
	pos, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return &s.records[pos], true
}

// Categories returns distinct categories in case-insensitive order.
func (s *Snapshot) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Store publishes snapshots atomically. Readers never observe a partially
// built dataset.
type Store struct {
	current atomic.Pointer[Snapshot]
	opts    index.Options
	now     func() time.Time
}

// New returns an empty store. Current is nil until the first Replace.
func New(opts index.Options) *Store {
	return &Store{opts: opts, now: time.Now}
}

// Current returns the active snapshot or nil if none has been installed.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Replace builds a snapshot from records and installs it.
func (s *Store) Replace(records []models.ToolRecord, source string) *Snapshot {
	return s.ReplaceAt(records, source, s.now())
}

// ReplaceAt is Replace for records that were fetched earlier, such as a
// persisted snapshot; loadedAt is kept as the snapshot's LoadedAt.
func (s *Store) ReplaceAt(records []models.ToolRecord, source string, loadedAt time.Time) *Snapshot {
	snap := NewSnapshot(records, s.opts, source, loadedAt)
	s.current.Store(snap)
	return snap
}

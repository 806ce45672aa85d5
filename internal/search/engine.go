// Package search ranks tool records against free-text queries.
//
// Every strategy reads one immutable store snapshot, so results for a fixed
// snapshot, query and filter set are deterministic and strategies may run
// concurrently.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/store"
)

// ErrNotReady is returned before any dataset snapshot has been installed.
var ErrNotReady = errors.New("search: no dataset loaded")

// SnapshotSource provides the active dataset snapshot.
type SnapshotSource interface {
	Current() *store.Snapshot
}

// Engine answers queries against the current snapshot of a SnapshotSource.
type Engine struct {
	source SnapshotSource
	now    func() time.Time
}

// NewEngine creates an engine reading from source.
func NewEngine(source SnapshotSource) *Engine {
	return &Engine{source: source, now: time.Now}
}

func (e *Engine) snapshot() (*store.Snapshot, error) {
	snap := e.source.Current()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Search runs the direct fuzzy match and applies filters.
func (e *Engine) Search(query string, f models.Filters) ([]models.SearchResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return ApplyFilters(Direct(snap, query), f), nil
}

// SearchByProblem ranks records by complaints containing the query.
func (e *Engine) SearchByProblem(query string, f models.Filters) ([]models.SearchResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return ApplyFilters(ByProblem(snap.Records(), query), f), nil
}

// SearchByOpportunity ranks records by industry gaps containing the query.
func (e *Engine) SearchByOpportunity(query string, f models.Filters) ([]models.SearchResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return ApplyFilters(ByOpportunity(snap.Records(), query), f), nil
}

// Suggestions proposes completions for a partial query.
func (e *Engine) Suggestions(partial string) ([]models.SearchSuggestion, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return Suggest(snap, partial), nil
}

// Categories returns the distinct categories of the current dataset.
func (e *Engine) Categories() ([]string, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Categories(), nil
}

// PopularTools returns up to limit records ordered by community votes.
// A non-positive limit returns every record.
func (e *Engine) PopularTools(limit int) ([]models.ToolRecord, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	recs := append([]models.ToolRecord(nil), snap.Records()...)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CommunityVotes != recs[j].CommunityVotes {
			return recs[i].CommunityVotes > recs[j].CommunityVotes
		}
		return lessByName(&recs[i], &recs[j])
	})
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs, nil
}

// Tool returns a single record by id.
func (e *Engine) Tool(id string) (*models.ToolRecord, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	rec, ok := snap.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", id, models.ErrToolNotFound)
	}
	return rec, nil
}

// SmartSearch runs every strategy against the same snapshot and returns the
// lists side by side.
func (e *Engine) SmartSearch(ctx context.Context, query string, f models.Filters) (*models.SmartSearchResponse, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return smartSearch(ctx, snap, query, f, e.now())
}

func sortResults(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return lessByName(results[i].Tool, results[j].Tool)
	})
}

func lessByName(a, b *models.ToolRecord) bool {
	if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
		return na < nb
	}
	return a.ID < b.ID
}

package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/store"
)

// maxSimilarSources bounds how many top-ranked tools contribute similar-tool references.
const maxSimilarSources = 5

func smartSearch(ctx context.Context, snap *store.Snapshot, query string, f models.Filters, now time.Time) (*models.SmartSearchResponse, error) {
	resp := &models.SmartSearchResponse{
		Query:                   query,
		DirectMatches:           []models.SearchResult{},
		ProblemBasedMatches:     []models.SearchResult{},
		OpportunityBasedMatches: []models.SearchResult{},
		SimilarTools:            []models.SimilarToolMatch{},
		GeneratedAt:             now,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		resp.DirectMatches = orEmpty(ApplyFilters(Direct(snap, query), f))
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		resp.ProblemBasedMatches = orEmpty(ApplyFilters(ByProblem(snap.Records(), query), f))
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		resp.OpportunityBasedMatches = orEmpty(ApplyFilters(ByOpportunity(snap.Records(), query), f))
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		resp.Suggestions = Suggest(snap, query)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp.SimilarTools = SimilarTools(snap, sources(resp))
	resp.Insights = insights(resp)
	return resp, nil
}

func orEmpty(r []models.SearchResult) []models.SearchResult {
	if r == nil {
		return []models.SearchResult{}
	}
	return r
}

// sources picks the first distinct tools across the strategy lists, direct matches first.
func sources(resp *models.SmartSearchResponse) []*models.ToolRecord {
	var out []*models.ToolRecord
	seen := make(map[string]bool)
	for _, list := range [][]models.SearchResult{resp.DirectMatches, resp.ProblemBasedMatches, resp.OpportunityBasedMatches} {
		for _, r := range list {
			if len(out) == maxSimilarSources {
				return out
			}
			if seen[r.Tool.ID] {
				continue
			}
			seen[r.Tool.ID] = true
			out = append(out, r.Tool)
		}
	}
	return out
}

// SimilarTools resolves the similar-tool references of the given tools against
// the snapshot. References that do not resolve by id or name are replaced by a
// synthesized stand-in record. Results are deduplicated by target id and never
// point back at one of the source tools.
func SimilarTools(snap *store.Snapshot, from []*models.ToolRecord) []models.SimilarToolMatch {
	out := []models.SimilarToolMatch{}
	seen := make(map[string]bool, len(from))
	for _, src := range from {
		seen[src.ID] = true
	}
	for _, src := range from {
		for _, ref := range src.SimilarTools {
			tool, resolved := resolve(snap, ref)
			if seen[tool.ID] {
				continue
			}
			seen[tool.ID] = true
			out = append(out, models.SimilarToolMatch{
				SourceID:  src.ID,
				Reference: ref,
				Tool:      tool,
				Resolved:  resolved,
			})
		}
	}
	return out
}

func resolve(snap *store.Snapshot, ref models.SimilarTool) (*models.ToolRecord, bool) {
	if ref.ID != "" {
		if rec, ok := snap.Lookup(ref.ID); ok {
			return rec, true
		}
	}
	if ref.Name != "" {
		if rec, ok := snap.ByName(ref.Name); ok {
			return rec, true
		}
	}
	stand := ref.StandIn()
	return &stand, false
}

func insights(resp *models.SmartSearchResponse) models.Insights {
	ins := models.Insights{CategoryBreakdown: map[string]int{}}
	seen := make(map[string]bool)
	var votes int
	for _, list := range [][]models.SearchResult{resp.DirectMatches, resp.ProblemBasedMatches, resp.OpportunityBasedMatches} {
		for _, r := range list {
			if seen[r.Tool.ID] {
				continue
			}
			seen[r.Tool.ID] = true
			votes += r.Tool.CommunityVotes
			if c := strings.TrimSpace(r.Tool.Category); c != "" {
				ins.CategoryBreakdown[c]++
			}
		}
	}
	ins.DistinctTools = len(seen)
	if ins.DistinctTools > 0 {
		ins.AverageVotes = float64(votes) / float64(ins.DistinctTools)
	}
	ins.TopProblem = mostCommon(resp.ProblemBasedMatches)
	if len(resp.OpportunityBasedMatches) > 0 && len(resp.OpportunityBasedMatches[0].MatchedKeywords) > 0 {
		ins.TopOpportunity = resp.OpportunityBasedMatches[0].MatchedKeywords[0]
	}
	return ins
}

// mostCommon returns the matched text shared by the most results, ties broken
// by first appearance.
func mostCommon(results []models.SearchResult) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range results {
		for _, kw := range r.MatchedKeywords {
			key := strings.ToLower(kw)
			if counts[key] == 0 {
				order = append(order, kw)
			}
			counts[key]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[strings.ToLower(order[i])] > counts[strings.ToLower(order[j])]
	})
	if len(order) == 0 {
		return ""
	}
	return order[0]
}

package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/store"
	"github.com/pauljones0/gapfinder/internal/util"
)

const (
	minSuggestLen        = 2
	maxSuggestions       = 10
	maxToolSuggestions   = 5
	maxProblemPhrases    = 3
	maxOpportunityPhrase = 2

	relevanceTool        = 1.0
	relevanceCategory    = 0.8
	relevanceProblem     = 0.7
	relevanceOpportunity = 0.6
)

// Suggest derives typed completions for a partial query. Prefixes shorter
// than two characters produce nothing.
func Suggest(snap *store.Snapshot, partial string) []models.SearchSuggestion {
	q := util.NormalizeText(partial)
	if utf8.RuneCountInString(q) < minSuggestLen {
		return []models.SearchSuggestion{}
	}
	recs := snap.Records()

	var out []models.SearchSuggestion
	out = append(out, toolSuggestions(recs, q)...)
	out = append(out, categorySuggestions(recs, q)...)
	out = append(out, phraseSuggestions(recs, q, models.SuggestionProblem, relevanceProblem, maxProblemPhrases,
		func(r *models.ToolRecord) []string {
			texts := make([]string, 0, len(r.UserComplaints))
			for _, c := range r.UserComplaints {
				texts = append(texts, c.Issue)
			}
			return texts
		})...)
	out = append(out, phraseSuggestions(recs, q, models.SuggestionOpportunity, relevanceOpportunity, maxOpportunityPhrase,
		func(r *models.ToolRecord) []string {
			texts := make([]string, 0, len(r.IndustryGaps))
			for _, g := range r.IndustryGaps {
				texts = append(texts, g.Gap)
			}
			return texts
		})...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})

	final := make([]models.SearchSuggestion, 0, maxSuggestions)
	seen := make(map[string]bool)
	for _, s := range out {
		key := util.NormalizeText(s.Text)
		if seen[key] || s.Count == 0 {
			continue
		}
		seen[key] = true
		final = append(final, s)
		if len(final) == maxSuggestions {
			break
		}
	}
	return final
}

func toolSuggestions(recs []models.ToolRecord, q string) []models.SearchSuggestion {
	var hits []*models.ToolRecord
	for i := range recs {
		if strings.HasPrefix(util.NormalizeText(recs[i].Name), q) {
			hits = append(hits, &recs[i])
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].CommunityVotes != hits[j].CommunityVotes {
			return hits[i].CommunityVotes > hits[j].CommunityVotes
		}
		return lessByName(hits[i], hits[j])
	})
	if len(hits) > maxToolSuggestions {
		hits = hits[:maxToolSuggestions]
	}
	out := make([]models.SearchSuggestion, 0, len(hits))
	for _, r := range hits {
		out = append(out, models.SearchSuggestion{
			Text:      r.Name,
			Type:      models.SuggestionTool,
			Relevance: relevanceTool,
			Count:     1,
			ToolID:    r.ID,
		})
	}
	return out
}

func categorySuggestions(recs []models.ToolRecord, q string) []models.SearchSuggestion {
	counts := make(map[string]int)
	display := make(map[string]string)
	for i := range recs {
		key := util.NormalizeText(recs[i].Category)
		if key == "" {
			continue
		}
		if _, ok := display[key]; !ok {
			display[key] = strings.TrimSpace(recs[i].Category)
		}
		counts[key]++
	}
	var out []models.SearchSuggestion
	for key, n := range counts {
		if !strings.Contains(key, q) {
			continue
		}
		out = append(out, models.SearchSuggestion{
			Text:      display[key],
			Type:      models.SuggestionCategory,
			Relevance: relevanceCategory,
			Count:     n,
		})
	}
	sortByCount(out)
	return out
}

// phraseSuggestions groups matching texts by normalized form and ranks the
// groups by the number of distinct records carrying them.
func phraseSuggestions(recs []models.ToolRecord, q string, typ models.SuggestionType, relevance float64, limit int,
	texts func(*models.ToolRecord) []string) []models.SearchSuggestion {
	counts := make(map[string]int)
	display := make(map[string]string)
	for i := range recs {
		counted := make(map[string]bool)
		for _, t := range texts(&recs[i]) {
			key := util.NormalizeText(t)
			if key == "" || !strings.Contains(key, q) || counted[key] {
				continue
			}
			counted[key] = true
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = strings.TrimSpace(t)
			}
		}
	}
	out := make([]models.SearchSuggestion, 0, len(counts))
	for key, n := range counts {
		out = append(out, models.SearchSuggestion{
			Text:      display[key],
			Type:      typ,
			Relevance: relevance,
			Count:     n,
		})
	}
	sortByCount(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortByCount(s []models.SearchSuggestion) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Count != s[j].Count {
			return s[i].Count > s[j].Count
		}
		return strings.ToLower(s[i].Text) < strings.ToLower(s[j].Text)
	})
}

package search

import (
	"strings"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/store"
)

// Direct delegates to the snapshot's fuzzy index.
func Direct(snap *store.Snapshot, query string) []models.SearchResult {
	matches := snap.Index.Search(query)
	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.SearchResult{
			Tool:            snap.At(m.Position),
			Score:           m.Score,
			MatchedKeywords: matchedTexts(m.Fields),
			MatchType:       m.Type,
			Matches:         m.Fields,
		})
	}
	return results
}

// ByProblem scores each record by the average severity-weighted frequency of
// complaints whose issue contains the query. Records without such a complaint
// are excluded.
func ByProblem(records []models.ToolRecord, query string) []models.SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var results []models.SearchResult
	for i := range records {
		rec := &records[i]
		var sum float64
		var hits []models.FieldMatch
		for _, c := range rec.UserComplaints {
			fm, ok := containsMatch(models.FieldComplaints, c.Issue, q)
			if !ok {
				continue
			}
			sum += models.SeverityWeight(c.Severity) * float64(c.Frequency) / 100
			hits = append(hits, fm)
		}
		if len(hits) == 0 {
			continue
		}
		results = append(results, substringResult(rec, sum/float64(len(hits)), hits))
	}
	sortResults(results)
	return results
}

// ByOpportunity scores each record by its single best industry gap whose gap
// or opportunity text contains the query.
func ByOpportunity(records []models.ToolRecord, query string) []models.SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var results []models.SearchResult
	for i := range records {
		rec := &records[i]
		best := -1.0
		var hits []models.FieldMatch
		for _, g := range rec.IndustryGaps {
			fm, ok := containsMatch(models.FieldGaps, g.Gap, q)
			if !ok {
				fm, ok = containsMatch(models.FieldGaps, g.Opportunity, q)
			}
			if !ok {
				continue
			}
			score := models.PotentialWeight(g.Potential) *
				float64(g.Probability()) / 100 *
				models.DifficultyWeight(g.Difficulty)
			if score > best {
				best = score
			}
			hits = append(hits, fm)
		}
		if len(hits) == 0 {
			continue
		}
		results = append(results, substringResult(rec, best, hits))
	}
	sortResults(results)
	return results
}

func substringResult(rec *models.ToolRecord, score float64, hits []models.FieldMatch) models.SearchResult {
	mt := models.MatchPartial
	for _, h := range hits {
		if strings.EqualFold(strings.TrimSpace(h.Value), h.Matched) {
			mt = models.MatchExact
			break
		}
	}
	return models.SearchResult{
		Tool:            rec,
		Score:           score,
		MatchedKeywords: matchedTexts(hits),
		MatchType:       mt,
		Matches:         hits,
	}
}

// containsMatch reports whether value contains the lowercased query q and
// returns the literal matched text.
func containsMatch(field, value, q string) (models.FieldMatch, bool) {
	lv := strings.ToLower(value)
	i := strings.Index(lv, q)
	if i < 0 {
		return models.FieldMatch{}, false
	}
	matched := lv[i : i+len(q)]
	if len(lv) == len(value) {
		matched = value[i : i+len(q)]
	}
	idx := make([]int, 0, len(q))
	for k := i; k < i+len(q); k++ {
		idx = append(idx, k)
	}
	return models.FieldMatch{Field: field, Value: value, Matched: matched, Indexes: idx}, true
}

// matchedTexts lists the distinct field values that triggered a match.
func matchedTexts(fields []models.FieldMatch) []string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Value] {
			continue
		}
		seen[f.Value] = true
		out = append(out, f.Value)
	}
	return out
}

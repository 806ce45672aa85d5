package search

import (
	"strings"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/util"
)

// ApplyFilters keeps the results whose tool passes f, preserving order.
func ApplyFilters(results []models.SearchResult, f models.Filters) []models.SearchResult {
	if f.IsZero() {
		return results
	}
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if Matches(r.Tool, f) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether rec passes every non-empty filter group.
func Matches(rec *models.ToolRecord, f models.Filters) bool {
	if len(f.Categories) > 0 && !matchesCategory(rec.Category, f.Categories) {
		return false
	}
	if len(f.PriceRanges) > 0 && !MatchesPrice(rec.Pricing, f.PriceRanges) {
		return false
	}
	if len(f.Difficulties) > 0 && !hasGap(rec, func(g models.IndustryGap) bool {
		for _, d := range f.Difficulties {
			if strings.EqualFold(string(g.Difficulty), string(d)) {
				return true
			}
		}
		return false
	}) {
		return false
	}
	if len(f.Potentials) > 0 && !hasGap(rec, func(g models.IndustryGap) bool {
		for _, p := range f.Potentials {
			if strings.EqualFold(string(g.Potential), string(p)) {
				return true
			}
		}
		return false
	}) {
		return false
	}
	return true
}

func matchesCategory(category string, wanted []string) bool {
	c := strings.TrimSpace(category)
	for _, w := range wanted {
		if strings.EqualFold(c, strings.TrimSpace(w)) {
			return true
		}
	}
	return false
}

// MatchesPrice tests pricing text against any of the brackets. "free" is a
// substring test; numeric brackets use the first "$<integer>" token and never
// match when there is none.
func MatchesPrice(pricing string, brackets []models.PriceBracket) bool {
	amount, hasAmount := util.ParseDollarAmount(pricing)
	for _, b := range brackets {
		if b == models.PriceFree {
			if strings.Contains(strings.ToLower(pricing), "free") {
				return true
			}
			continue
		}
		lo, hi, ok := b.Bounds()
		if !ok || !hasAmount {
			continue
		}
		if v := float64(amount); v >= lo && v < hi {
			return true
		}
	}
	return false
}

func hasGap(rec *models.ToolRecord, pred func(models.IndustryGap) bool) bool {
	for _, g := range rec.IndustryGaps {
		if pred(g) {
			return true
		}
	}
	return false
}

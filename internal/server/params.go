package server

import (
	"net/http"
	"strings"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/util"
)

const (
	defaultPopularLimit = 10
	maxPopularLimit     = 100
)

// listParam collects a query parameter given repeatedly, comma separated, or both.
func listParam(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		out = append(out, util.SplitList(v)...)
	}
	return out
}

// parseFilters reads category, price, difficulty and potential parameters.
// Enum values are matched case-insensitively.
func parseFilters(r *http.Request) models.Filters {
	var f models.Filters
	f.Categories = listParam(r, "category")
	for _, v := range listParam(r, "price") {
		f.PriceRanges = append(f.PriceRanges, models.PriceBracket(strings.ToLower(v)))
	}
	for _, v := range listParam(r, "difficulty") {
		f.Difficulties = append(f.Difficulties, models.Difficulty(strings.ToLower(v)))
	}
	for _, v := range listParam(r, "potential") {
		f.Potentials = append(f.Potentials, models.Potential(strings.ToLower(v)))
	}
	return f
}

func queryParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("q"))
}

func limitParam(r *http.Request) int {
	limit := util.SafeAtoi(r.URL.Query().Get("limit"))
	switch {
	case limit <= 0:
		return defaultPopularLimit
	case limit > maxPopularLimit:
		return maxPopularLimit
	}
	return limit
}

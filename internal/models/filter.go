package models

import "math"

type PriceBracket string

const (
	PriceFree    PriceBracket = "free"
	PriceUnder10 PriceBracket = "under-10"
	Price10To50  PriceBracket = "10-50"
	Price50To100 PriceBracket = "50-100"
	PriceOver100 PriceBracket = "over-100"
)

// Bounds returns the half-open dollar range [min, max) of a numeric bracket.
// ok is false for PriceFree and unknown brackets.
func (p PriceBracket) Bounds() (min, max float64, ok bool) {
	switch p {
	case PriceUnder10:
		return 0, 10, true
	case Price10To50:
		return 10, 50, true
	case Price50To100:
		return 50, 100, true
	case PriceOver100:
		return 100, math.Inf(1), true
	default:
		return 0, 0, false
	}
}

// Filters narrows a result list by membership. Empty groups do not filter;
// values inside a group are OR-ed, groups are AND-ed.
type Filters struct {
	Categories   []string       `json:"categories,omitempty"`
	PriceRanges  []PriceBracket `json:"priceRanges,omitempty"`
	Difficulties []Difficulty   `json:"difficulties,omitempty"`
	Potentials   []Potential    `json:"potentials,omitempty"`
}

func (f Filters) IsZero() bool {
	return len(f.Categories) == 0 && len(f.PriceRanges) == 0 &&
		len(f.Difficulties) == 0 && len(f.Potentials) == 0
}

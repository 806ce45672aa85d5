package dataset

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/util"
)

// jsonLDItemList is a schema.org ItemList of SoftwareApplication entries, the
// shape published by catalogue pages that do not embed the native dataset.
type jsonLDItemList struct {
	Type            string           `json:"@type"` // Should be "ItemList"
	ItemListElement []jsonLDListItem `json:"itemListElement"`
}

type jsonLDListItem struct {
	Item jsonLDSoftware `json:"item"`
}

type jsonLDSoftware struct {
	Type                string       `json:"@type"` // Should be "SoftwareApplication"
	Identifier          string       `json:"identifier"`
	Name                string       `json:"name"`
	AlternateName       string       `json:"alternateName"`
	ApplicationCategory string       `json:"applicationCategory"`
	Keywords            string       `json:"keywords"`
	Offers              jsonLDOffer  `json:"offers"`
	AggregateRating     jsonLDRating `json:"aggregateRating"`
}

type jsonLDOffer struct {
	Price         json.RawMessage `json:"price"` // number or string
	PriceCurrency string          `json:"priceCurrency"`
}

type jsonLDRating struct {
	RatingCount json.RawMessage `json:"ratingCount"` // number or string
}

// toRecord maps a SoftwareApplication onto the minimal tool record it can fill.
func (s jsonLDSoftware) toRecord() models.ToolRecord {
	rec := models.ToolRecord{
		ID:             s.Identifier,
		Name:           strings.TrimSpace(s.Name),
		Category:       s.ApplicationCategory,
		Keywords:       util.SplitList(s.Keywords),
		Aliases:        util.SplitList(s.AlternateName),
		Pricing:        s.Offers.pricing(),
		CommunityVotes: util.SafeAtoi(rawScalar(s.AggregateRating.RatingCount)),
	}
	if rec.ID == "" {
		rec.ID = strings.ToLower(strings.Join(strings.Fields(rec.Name), "-"))
	}
	return rec
}

func (o jsonLDOffer) pricing() string {
	p := rawScalar(o.Price)
	if p == "" {
		return ""
	}
	if v, err := strconv.ParseFloat(p, 64); err == nil && v == 0 {
		return "Free"
	}
	return "$" + p
}

// rawScalar renders a JSON number or string without quotes.
func rawScalar(raw json.RawMessage) string {
	return strings.TrimSpace(strings.Trim(string(raw), `"`))
}

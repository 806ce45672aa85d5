// Package index implements the weighted multi-field fuzzy index over tool records.
//
// An Index is immutable once built. Each field value is compared to the query
// and assigned a distance in [0,1]; values within the threshold contribute a
// FieldMatch. A record's distance is its best field distance, inflated by a
// penalty for lower-weighted fields, and the reported score is 1 - distance.
package index

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"github.com/sahilm/fuzzy"

	"github.com/pauljones0/gapfinder/internal/models"
)

// DefaultThreshold accepts substring, prefix, single-transposition and compact
// abbreviation matches while rejecting unrelated words.
const DefaultThreshold = 0.4

// Weight keys accepted in Options.Weights.
const (
	WeightName       = "name"
	WeightKeywords   = "keywords"
	WeightAliases    = "aliases"
	WeightCategory   = "category"
	WeightComplaints = "complaints"
	WeightGaps       = "gaps"
)

const (
	fieldName = iota
	fieldKeywords
	fieldAliases
	fieldCategory
	fieldComplaints
	fieldGaps
	fieldCount
)

var fieldLabels = [fieldCount]string{
	models.FieldName,
	models.FieldKeywords,
	models.FieldAliases,
	models.FieldCategory,
	models.FieldComplaints,
	models.FieldGaps,
}

var weightKeys = [fieldCount]string{
	WeightName, WeightKeywords, WeightAliases, WeightCategory, WeightComplaints, WeightGaps,
}

var defaultWeights = [fieldCount]float64{0.32, 0.25, 0.18, 0.12, 0.08, 0.05}

const (
	// maxFieldPenalty is the distance inflation applied to a field with zero weight.
	maxFieldPenalty = 0.5
	// multiFieldBonus shrinks the distance per additional matching field.
	multiFieldBonus = 0.05
	maxBonusFields  = 4
	minEditQueryLen = 4
	// Words shorter than longEditLen tolerate one edit, longer ones two.
	longEditLen = 8
)

// Options tunes the index. Zero values fall back to defaults.
type Options struct {
	Weights   map[string]float64
	Threshold float64
}

// DefaultOptions returns the default field weights and threshold.
func DefaultOptions() Options {
	w := make(map[string]float64, fieldCount)
	for i, k := range weightKeys {
		w[k] = defaultWeights[i]
	}
	return Options{Weights: w, Threshold: DefaultThreshold}
}

// Match is one record matched by a query.
type Match struct {
	Position int
	Distance float64
	Score    float64
	Type     models.MatchType
	Fields   []models.FieldMatch
}

type entry struct {
	id     string
	name   string
	values [fieldCount][]string
}

// Index is a read-only fuzzy index over a fixed record slice.
type Index struct {
	entries   []entry
	weights   [fieldCount]float64
	penalties [fieldCount]float64
	threshold float64
}

// Build indexes records. Positions in returned matches refer to this slice.
func Build(records []models.ToolRecord, opts Options) *Index {
	ix := &Index{
		entries:   make([]entry, len(records)),
		threshold: opts.Threshold,
	}
	if ix.threshold <= 0 {
		ix.threshold = DefaultThreshold
	}
	ix.weights = resolveWeights(opts.Weights)

	var maxW float64
	for _, w := range ix.weights {
		if w > maxW {
			maxW = w
		}
	}
	for i, w := range ix.weights {
		if maxW > 0 {
			ix.penalties[i] = maxFieldPenalty * (maxW - w) / maxW
		}
	}

	for i := range records {
		rec := &records[i]
		e := entry{id: rec.ID, name: rec.Name}
		e.values[fieldName] = nonEmpty(rec.Name)
		e.values[fieldKeywords] = nonEmpty(rec.Keywords...)
		e.values[fieldAliases] = nonEmpty(rec.Aliases...)
		e.values[fieldCategory] = nonEmpty(rec.Category)
		for _, c := range rec.UserComplaints {
			e.values[fieldComplaints] = append(e.values[fieldComplaints], nonEmpty(c.Issue)...)
		}
		for _, g := range rec.IndustryGaps {
			e.values[fieldGaps] = append(e.values[fieldGaps], nonEmpty(g.Gap, g.Opportunity)...)
		}
		ix.entries[i] = e
	}
	return ix
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Threshold returns the effective distance threshold.
func (ix *Index) Threshold() float64 {
	return ix.threshold
}

// Search returns matches sorted by score descending, then name, then id.
// A blank query returns no matches.
func (ix *Index) Search(query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []Match
	for pos := range ix.entries {
		if m, ok := ix.matchEntry(pos, q); ok {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ea, eb := ix.entries[a.Position], ix.entries[b.Position]
		if na, nb := strings.ToLower(ea.name), strings.ToLower(eb.name); na != nb {
			return na < nb
		}
		return ea.id < eb.id
	})
	return matches
}

func (ix *Index) matchEntry(pos int, q string) (Match, bool) {
	e := &ix.entries[pos]
	best := 2.0
	bestType := models.MatchSimilar
	matchedFields := 0
	var provenance []models.FieldMatch

	for f := 0; f < fieldCount; f++ {
		if ix.weights[f] <= 0 {
			continue
		}
		fieldBest := 2.0
		var fieldType models.MatchType
		for _, v := range e.values[f] {
			vm, ok := compare(q, v, ix.threshold)
			if !ok {
				continue
			}
			provenance = append(provenance, models.FieldMatch{
				Field:    fieldLabels[f],
				Value:    v,
				Matched:  vm.matched,
				Indexes:  vm.indexes,
				Distance: vm.distance,
			})
			if vm.distance < fieldBest {
				fieldBest = vm.distance
				fieldType = vm.kind
			}
		}
		if fieldBest > 1 {
			continue
		}
		matchedFields++
		adjusted := fieldBest + (1-fieldBest)*ix.penalties[f]
		if adjusted < best {
			best = adjusted
			bestType = fieldType
			if f == fieldCategory {
				bestType = models.MatchCategory
			}
		}
	}
	if matchedFields == 0 {
		return Match{}, false
	}

	extra := matchedFields - 1
	if extra > maxBonusFields {
		extra = maxBonusFields
	}
	distance := best * (1 - multiFieldBonus*float64(extra))

	sort.SliceStable(provenance, func(i, j int) bool {
		return provenance[i].Distance < provenance[j].Distance
	})

	return Match{
		Position: pos,
		Distance: distance,
		Score:    1 - distance,
		Type:     bestType,
		Fields:   provenance,
	}, true
}

type valueMatch struct {
	distance float64
	kind     models.MatchType
	matched  string
	indexes  []int
}

// compare scores a lowercased, trimmed query against one field value.
func compare(q, value string, threshold float64) (valueMatch, bool) {
	orig := strings.TrimSpace(value)
	lv := strings.ToLower(orig)
	if lv == "" {
		return valueMatch{}, false
	}
	// Offsets into lv map onto orig only when lowercasing preserved byte length.
	sameLen := len(lv) == len(orig)
	slice := func(start, end int) string {
		if sameLen {
			return orig[start:end]
		}
		return lv[start:end]
	}

	qLen := utf8.RuneCountInString(q)
	ratio := float64(qLen) / float64(utf8.RuneCountInString(lv))

	var best valueMatch
	found := false
	consider := func(m valueMatch) {
		if m.distance > threshold {
			return
		}
		if !found || m.distance < best.distance {
			best = m
			found = true
		}
	}

	switch {
	case lv == q:
		return valueMatch{distance: 0, kind: models.MatchExact, matched: orig, indexes: span(0, len(lv))}, true
	case strings.HasPrefix(lv, q):
		consider(valueMatch{
			distance: 0.1 * (1 - ratio),
			kind:     models.MatchPartial,
			matched:  slice(0, len(q)),
			indexes:  span(0, len(q)),
		})
	default:
		if i := strings.Index(lv, q); i >= 0 {
			consider(valueMatch{
				distance: 0.1 + 0.2*(1-ratio),
				kind:     models.MatchPartial,
				matched:  slice(i, i+len(q)),
				indexes:  span(i, i+len(q)),
			})
		}
	}
	if found {
		return best, true
	}

	if qLen >= minEditQueryLen {
		for _, w := range words(lv) {
			wLen := utf8.RuneCountInString(w.text)
			edits := edlib.OSADamerauLevenshteinDistance(q, w.text)
			if edits == 0 || edits > allowedEdits(qLen, wLen) {
				continue
			}
			longest := qLen
			if wLen > longest {
				longest = wLen
			}
			norm := float64(edits) / float64(longest)
			consider(valueMatch{
				distance: 0.15 + 0.75*norm,
				kind:     models.MatchSimilar,
				matched:  slice(w.start, w.end),
				indexes:  span(w.start, w.end),
			})
		}
	}

	if qLen >= 2 {
		if fm := fuzzy.Find(q, []string{lv}); len(fm) > 0 {
			idx := fm[0].MatchedIndexes
			if len(idx) > 0 {
				first, last := idx[0], idx[len(idx)-1]
				width := last - first + 1
				if width <= 2*len(q)+2 {
					slack := float64(width-len(q)) / float64(len(q)+2)
					if slack > 1 {
						slack = 1
					}
					consider(valueMatch{
						distance: 0.3 + 0.1*slack,
						kind:     models.MatchSimilar,
						matched:  slice(first, last+1),
						indexes:  append([]int(nil), idx...),
					})
				}
			}
		}
	}

	return best, found
}

type word struct {
	text       string
	start, end int
}

// words splits s into letter/digit runs with their byte offsets.
func words(s string) []word {
	var out []word
	start := -1
	for i, r := range s {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && start < 0 {
			start = i
		}
		if !isWord && start >= 0 {
			out = append(out, word{text: s[start:i], start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, word{text: s[start:], start: start, end: len(s)})
	}
	return out
}

func span(start, end int) []int {
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolveWeights(custom map[string]float64) [fieldCount]float64 {
	w := defaultWeights
	for i, k := range weightKeys {
		if v, ok := custom[k]; ok && v >= 0 {
			w[i] = v
		}
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return defaultWeights
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func allowedEdits(qLen, wLen int) int {
	if min(qLen, wLen) >= longEditLen {
		return 2
	}
	return 1
}

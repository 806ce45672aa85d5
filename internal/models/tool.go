package models

import (
	"errors"
	"strings"
)

// ErrToolNotFound is returned when a tool id does not resolve against the loaded records.
var ErrToolNotFound = errors.New("tool not found")

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type Potential string

const (
	PotentialLow      Potential = "low"
	PotentialMedium   Potential = "medium"
	PotentialHigh     Potential = "high"
	PotentialVeryHigh Potential = "very high"
)

// ToolRecord is one analyzed competitor. Records are created once per dataset load
// and never mutated afterwards; UI overlays (favorites, notes) live in the cache layer.
type ToolRecord struct {
	ID             string          `json:"id" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Category       string          `json:"category"`
	Pricing        string          `json:"pricing"`
	MarketShare    string          `json:"marketShare,omitempty"`
	Keywords       []string        `json:"keywords"`
	Aliases        []string        `json:"aliases"`
	UserComplaints []UserComplaint `json:"userComplaints"`
	IndustryGaps   []IndustryGap   `json:"industryGaps"`
	SimilarTools   []SimilarTool   `json:"similarTools"`
	CommunityVotes int             `json:"communityVotes"`
}

type UserComplaint struct {
	Issue     string   `json:"issue" validate:"required"`
	Frequency int      `json:"frequency"`
	Severity  Severity `json:"severity"`
	Source    string   `json:"source,omitempty"`
}

type IndustryGap struct {
	Gap                string     `json:"gap" validate:"required"`
	Opportunity        string     `json:"opportunity"`
	Difficulty         Difficulty `json:"difficulty"`
	Potential          Potential  `json:"potential"`
	SuccessProbability *int       `json:"successProbability,omitempty"`
}

// SimilarTool is a back-reference by id. The referenced record may not be loaded.
type SimilarTool struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Pricing  string `json:"pricing"`
	Strength string `json:"strength"`
	Weakness string `json:"weakness"`
}

// Normalize fills nil lists and clamps percentage fields into 0..100.
func (t *ToolRecord) Normalize() {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	t.Category = strings.TrimSpace(t.Category)
	if t.Keywords == nil {
		t.Keywords = []string{}
	}
	if t.Aliases == nil {
		t.Aliases = []string{}
	}
	if t.UserComplaints == nil {
		t.UserComplaints = []UserComplaint{}
	}
	if t.IndustryGaps == nil {
		t.IndustryGaps = []IndustryGap{}
	}
	if t.SimilarTools == nil {
		t.SimilarTools = []SimilarTool{}
	}
	for i := range t.UserComplaints {
		c := &t.UserComplaints[i]
		c.Frequency = clampPercent(c.Frequency)
		c.Severity = Severity(strings.ToLower(strings.TrimSpace(string(c.Severity))))
	}
	for i := range t.IndustryGaps {
		g := &t.IndustryGaps[i]
		g.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(g.Difficulty))))
		g.Potential = Potential(strings.ToLower(strings.TrimSpace(string(g.Potential))))
		if g.SuccessProbability != nil {
			p := clampPercent(*g.SuccessProbability)
			g.SuccessProbability = &p
		}
	}
	if t.CommunityVotes < 0 {
		t.CommunityVotes = 0
	}
}

// Probability returns the gap's success probability, defaulting to 50 when absent.
func (g IndustryGap) Probability() int {
	if g.SuccessProbability == nil {
		return 50
	}
	return *g.SuccessProbability
}

// SeverityWeight maps a complaint severity to its ranking weight.
// Unknown severities weigh as low.
func SeverityWeight(s Severity) float64 {
	switch s {
	case SeverityHigh:
		return 1.0
	case SeverityMedium:
		return 0.7
	default:
		return 0.4
	}
}

// PotentialWeight maps a gap potential to its ranking weight. Unknown values weigh as low.
func PotentialWeight(p Potential) float64 {
	switch p {
	case PotentialVeryHigh:
		return 1.0
	case PotentialHigh:
		return 0.75
	case PotentialMedium:
		return 0.5
	default:
		return 0.25
	}
}

// DifficultyWeight maps a gap difficulty to its ranking weight. Unknown values weigh as hard.
func DifficultyWeight(d Difficulty) float64 {
	switch d {
	case DifficultyEasy:
		return 1.0
	case DifficultyMedium:
		return 0.7
	default:
		return 0.4
	}
}

// StandIn builds the minimal record used when a similar-tool reference does not resolve.
func (s SimilarTool) StandIn() ToolRecord {
	rec := ToolRecord{
		ID:      s.ID,
		Name:    s.Name,
		Pricing: s.Pricing,
	}
	if rec.ID == "" {
		rec.ID = strings.ToLower(strings.Join(strings.Fields(s.Name), "-"))
	}
	rec.Normalize()
	return rec
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

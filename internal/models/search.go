package models

import "time"

type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchPartial  MatchType = "partial"
	MatchSimilar  MatchType = "similar"
	MatchCategory MatchType = "category"
)

// Field names used in match provenance.
const (
	FieldName       = "name"
	FieldKeywords   = "keywords"
	FieldAliases    = "aliases"
	FieldCategory   = "category"
	FieldComplaints = "userComplaints.issue"
	FieldGaps       = "industryGaps"
)

// FieldMatch records which field value triggered a match and the literal text that matched.
type FieldMatch struct {
	Field    string  `json:"field"`
	Value    string  `json:"value"`
	Matched  string  `json:"matched"`
	Indexes  []int   `json:"indexes,omitempty"`
	Distance float64 `json:"distance"`
}

// SearchResult is ephemeral and recomputed per query. Tool is shared with the record store.
type SearchResult struct {
	Tool            *ToolRecord  `json:"tool"`
	Score           float64      `json:"score"`
	MatchedKeywords []string     `json:"matchedKeywords"`
	MatchType       MatchType    `json:"matchType"`
	Matches         []FieldMatch `json:"matches,omitempty"`
}

type SuggestionType string

const (
	SuggestionTool        SuggestionType = "tool"
	SuggestionCategory    SuggestionType = "category"
	SuggestionProblem     SuggestionType = "problem"
	SuggestionOpportunity SuggestionType = "opportunity"
)

type SearchSuggestion struct {
	Text      string         `json:"text"`
	Type      SuggestionType `json:"type"`
	Relevance float64        `json:"relevance"`
	Count     int            `json:"count"`
	ToolID    string         `json:"toolId,omitempty"`
}

// SimilarToolMatch is one resolved back-reference. Resolved is false when Tool is a synthesized stand-in.
type SimilarToolMatch struct {
	SourceID  string      `json:"sourceId"`
	Reference SimilarTool `json:"reference"`
	Tool      *ToolRecord `json:"tool"`
	Resolved  bool        `json:"resolved"`
}

type Insights struct {
	DistinctTools     int            `json:"distinctTools"`
	CategoryBreakdown map[string]int `json:"categoryBreakdown"`
	TopProblem        string         `json:"topProblem,omitempty"`
	TopOpportunity    string         `json:"topOpportunity,omitempty"`
	AverageVotes      float64        `json:"averageVotes"`
}

// SmartSearchResponse keeps each strategy's list separate so callers can tell why a tool surfaced.
type SmartSearchResponse struct {
	Query                   string             `json:"query"`
	DirectMatches           []SearchResult     `json:"directMatches"`
	ProblemBasedMatches     []SearchResult     `json:"problemBasedMatches"`
	OpportunityBasedMatches []SearchResult     `json:"opportunityBasedMatches"`
	SimilarTools            []SimilarToolMatch `json:"similarTools"`
	Suggestions             []SearchSuggestion `json:"suggestions"`
	Insights                Insights           `json:"insights"`
	GeneratedAt             time.Time          `json:"generatedAt"`
}

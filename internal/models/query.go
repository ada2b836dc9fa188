package models

import "fmt"

// SearchQuery is an ad-hoc keyword lookup over the extracted corpora.
type SearchQuery struct {
	Query string     `json:"query"`
	Limit int        `json:"limit,omitempty"`
	Side  CorpusSide `json:"corpus_side,omitempty"`
	Fuzzy bool       `json:"fuzzy,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Side != "" && !q.Side.Valid() {
		return fmt.Errorf("unknown corpus side %q", q.Side)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// SearchHit is a single corpus search result.
type SearchHit struct {
	Fingerprint string     `json:"fingerprint"`
	Side        CorpusSide `json:"corpus_side"`
	DisplayName string     `json:"display_name"`
	Score       float64    `json:"score"`
	Excerpt     string     `json:"excerpt,omitempty"`
}

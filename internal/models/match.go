package models

import "time"

// MatchType is the verdict category returned by verification.
type MatchType string

const (
	MatchDirectTranslation  MatchType = "direct_translation"
	MatchPartialTranslation MatchType = "partial_translation"
	MatchAdaptation         MatchType = "adaptation"
	MatchNone               MatchType = "no_match"
)

// Valid reports whether t is one of the known match types.
func (t MatchType) Valid() bool {
	switch t {
	case MatchDirectTranslation, MatchPartialTranslation, MatchAdaptation, MatchNone:
		return true
	}
	return false
}

// EvidenceSource tells where persisted evidence snippets came from.
type EvidenceSource string

const (
	EvidenceConfirmed EvidenceSource = "oracle_confirmed"
	EvidenceLexical   EvidenceSource = "lexical_fallback"
)

// EvidenceSnippet is one snippet kept as evidence for a match.
type EvidenceSnippet struct {
	Original   string  `json:"original,omitempty"`
	Translated string  `json:"translated"`
	Ratio      float64 `json:"match_ratio,omitempty"`
}

// Location is a passage the verifier claims to have found in both texts.
type Location struct {
	TargetQuote string `json:"target_quote,omitempty"`
	SourceQuote string `json:"source_quote,omitempty"`
	Position    string `json:"position,omitempty"`
}

// Evidence is the justification stored with a match.
type Evidence struct {
	Reason    string            `json:"reason"`
	Snippets  []EvidenceSnippet `json:"snippets"`
	Locations []Location        `json:"locations,omitempty"`
	Source    EvidenceSource    `json:"source"`
}

// Citation is the bibliography entry attached to a match by the enrichment pass.
type Citation struct {
	Bibliography string `json:"chicago_bibliography"`
	Author       string `json:"author,omitempty"`
	Title        string `json:"title,omitempty"`
	Date         string `json:"date,omitempty"`
}

// Match is a verified candidate.
type Match struct {
	ID           string    `json:"id" db:"id"`
	RunID        string    `json:"run_id,omitempty" db:"run_id"`
	ArticleRef   string    `json:"article_ref" db:"article_ref"`
	ArticleTitle string    `json:"article_title" db:"article_title"`
	DocumentRef  string    `json:"document_ref" db:"document_ref"`
	DocumentName string    `json:"document_name" db:"document_name"`
	MatchType    MatchType `json:"match_type" db:"match_type"`
	Confidence   float64   `json:"confidence" db:"confidence"`
	Evidence     Evidence  `json:"evidence" db:"evidence"`
	Citation     *Citation `json:"citation,omitempty" db:"citation"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CandidateRecord is the per-run row written for every verified candidate pair.
type CandidateRecord struct {
	ID          int64     `json:"id" db:"id"`
	RunID       string    `json:"run_id" db:"run_id"`
	ArticleRef  string    `json:"article_ref" db:"article_ref"`
	DocumentRef string    `json:"document_ref" db:"document_ref"`
	Reason      string    `json:"reason" db:"reason"`
	Confidence  float64   `json:"confidence" db:"confidence"`
	RawResponse string    `json:"raw_response" db:"raw_response"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

package oracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/transmatch/internal/models"
)

// SourceIndex is the index_source answer for a candidate-source document.
type SourceIndex struct {
	Filename      string   `json:"filename"`
	Languages     []string `json:"languages_detected"`
	Summary       string   `json:"document_summary"`
	Keywords      []string `json:"keywords"`
	EstimatedDate string   `json:"estimated_date_or_year"`
}

func (r *SourceIndex) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return errors.New("missing document_summary")
	}
	return nil
}

// TargetIndex is the index_target answer for a Portuguese target document.
type TargetIndex struct {
	Filename      string   `json:"filename"`
	Summary       string   `json:"document_summary_pt"`
	Keywords      []string `json:"keywords_pt"`
	EstimatedDate string   `json:"estimated_date_or_year"`
}

func (r *TargetIndex) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return errors.New("missing document_summary_pt")
	}
	return nil
}

// SnippetPayload is one anchor as returned by extract_snippets.
type SnippetPayload struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
	AnchorType string `json:"anchor_type"`
}

// SnippetResult is the extract_snippets answer.
type SnippetResult struct {
	Snippets []SnippetPayload `json:"snippets"`
}

func (r *SnippetResult) Validate() error {
	if r.Snippets == nil {
		return errors.New("missing snippets")
	}
	return nil
}

// Usable returns at most max snippets that carry a translation. max <= 0 means no cap.
func (r *SnippetResult) Usable(max int) []models.Snippet {
	var out []models.Snippet
	for _, s := range r.Snippets {
		translated := strings.TrimSpace(s.Translated)
		if translated == "" {
			continue
		}
		out = append(out, models.Snippet{
			Original:   strings.TrimSpace(s.Original),
			Translated: translated,
			Anchor:     models.ParseAnchorType(strings.TrimSpace(s.AnchorType)),
		})
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// ConfirmedSnippet is a snippet the oracle claims to have found verbatim in the source text.
type ConfirmedSnippet struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// EvidenceQuote pairs a passage of the target with its counterpart in the source.
type EvidenceQuote struct {
	TargetQuote string `json:"target_quote"`
	SourceQuote string `json:"source_quote"`
	Position    string `json:"position"`
}

// Verdict is the verify_match answer.
type Verdict struct {
	IsMatch           *bool              `json:"is_match"`
	Confidence        *float64           `json:"confidence"`
	MatchType         models.MatchType   `json:"match_type"`
	Reason            string             `json:"reason"`
	ConfirmedSnippets []ConfirmedSnippet `json:"confirmed_snippets"`
	EvidenceQuotes    []EvidenceQuote    `json:"evidence_quotes"`
}

func (r *Verdict) Validate() error {
	if r.IsMatch == nil {
		return errors.New("missing is_match")
	}
	if r.Confidence == nil {
		return errors.New("missing confidence")
	}
	if c := *r.Confidence; c < 0 || c > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", c)
	}
	r.MatchType = models.MatchType(strings.ToLower(strings.TrimSpace(string(r.MatchType))))
	if r.MatchType == "" && !*r.IsMatch {
		r.MatchType = models.MatchNone
	}
	if !r.MatchType.Valid() {
		return fmt.Errorf("unknown match_type %q", r.MatchType)
	}
	return nil
}

// Matched returns is_match, treating a missing value as false.
func (r *Verdict) Matched() bool {
	return r.IsMatch != nil && *r.IsMatch
}

// Score returns the confidence, treating a missing value as 0.
func (r *Verdict) Score() float64 {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

// CitationResult is the generate_citation answer.
type CitationResult struct {
	Bibliography string `json:"chicago_bibliography"`
	Fields       struct {
		Author string `json:"author"`
		Title  string `json:"title"`
		Date   string `json:"date"`
	} `json:"fields"`
}

func (r *CitationResult) Validate() error {
	if strings.TrimSpace(r.Bibliography) == "" {
		return errors.New("missing chicago_bibliography")
	}
	return nil
}

// Citation converts the answer to the stored form.
func (r *CitationResult) Citation() *models.Citation {
	return &models.Citation{
		Bibliography: strings.TrimSpace(r.Bibliography),
		Author:       strings.TrimSpace(r.Fields.Author),
		Title:        strings.TrimSpace(r.Fields.Title),
		Date:         strings.TrimSpace(r.Fields.Date),
	}
}

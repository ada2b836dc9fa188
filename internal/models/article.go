package models

import "fmt"

// Article is one manifest row joined to the target document that contains it.
// Several articles may share a document; Text is the document's text, not a copy of a slice of it.
type Article struct {
	Title               string            `json:"title"`
	PageRange           string            `json:"page_range,omitempty"`
	Sheet               string            `json:"sheet"`
	Row                 int               `json:"row"`
	DocumentFingerprint string            `json:"document_fingerprint"`
	DocumentName        string            `json:"document_name"`
	Text                string            `json:"-"`
	ManifestRow         map[string]string `json:"manifest_row,omitempty"`
}

// Ref is the stable reference used in the candidates and matches tables.
func (a *Article) Ref() string {
	fp := a.DocumentFingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return fmt.Sprintf("%s#%d@%s", a.Sheet, a.Row, fp)
}

// Label is a human-readable description for logs.
func (a *Article) Label() string {
	if a.PageRange != "" {
		return fmt.Sprintf("%s (%s, pp. %s)", a.Title, a.DocumentName, a.PageRange)
	}
	return fmt.Sprintf("%s (%s)", a.Title, a.DocumentName)
}

// AnchorType classifies why a snippet is expected to survive translation.
type AnchorType string

const (
	AnchorProperName        AnchorType = "properName"
	AnchorDate              AnchorType = "date"
	AnchorNumber            AnchorType = "number"
	AnchorTechnicalTerm     AnchorType = "technicalTerm"
	AnchorDistinctivePhrase AnchorType = "distinctivePhrase"
	AnchorLatinQuote        AnchorType = "latinQuote"
	AnchorTitle             AnchorType = "title"
)

// ParseAnchorType maps a loosely formatted anchor label to a known type.
// Unknown labels fall back to AnchorDistinctivePhrase.
func ParseAnchorType(s string) AnchorType {
	switch AnchorType(s) {
	case AnchorProperName, AnchorDate, AnchorNumber, AnchorTechnicalTerm,
		AnchorDistinctivePhrase, AnchorLatinQuote, AnchorTitle:
		return AnchorType(s)
	}
	switch s {
	case "proper_name", "name":
		return AnchorProperName
	case "technical_term", "term":
		return AnchorTechnicalTerm
	case "latin_quote", "quote", "quotation":
		return AnchorLatinQuote
	}
	return AnchorDistinctivePhrase
}

// Snippet is a short anchor taken from an article together with its translation
// into the source corpus language.
type Snippet struct {
	Original   string     `json:"original"`
	Translated string     `json:"translated"`
	Anchor     AnchorType `json:"anchor_type"`
}

// SnippetHit records how well one snippet matched one document.
type SnippetHit struct {
	Snippet      Snippet  `json:"snippet"`
	Ratio        float64  `json:"match_ratio"`
	MatchedTerms []string `json:"matched_terms"`
}

// Candidate is an (article, document) pair that survived lexical filtering.
type Candidate struct {
	Article    *Article     `json:"article"`
	Document   *Document    `json:"-"`
	MatchCount int          `json:"match_count"`
	Supporting []SnippetHit `json:"supporting_snippets"`
}

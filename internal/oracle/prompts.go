package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/pkg/utils"
)

// indexTextLimit caps the document text sent for indexing.
const indexTextLimit = 15000

const indexSourceTemplate = `Analyze this text from a 19th-century French/English corpus.

Respond ONLY with a JSON object of this shape:
{"filename": "...", "languages_detected": ["fr"], "document_summary": "...", "keywords": ["..."], "estimated_date_or_year": "..."}

Filename: %s
Text:
%s`

const indexTargetTemplate = `Analyze this text from a 19th-century Brazilian Portuguese corpus.

Respond ONLY with a JSON object of this shape:
{"filename": "...", "document_summary_pt": "...", "keywords_pt": ["..."], "estimated_date_or_year": "..."}

Filename: %s
Text:
%s`

// snippetInstructions tells the oracle which anchors survive translation.
const snippetInstructions = `The article below was published in a 19th-century Brazilian Portuguese periodical and may be a translation of a French or English original.

Choose between 2 and 4 short snippets from the article that are most likely to survive translation unchanged or nearly unchanged, and translate each into the probable source language.

Prefer, in this order:
- proper names of people and places
- dates and numbers
- technical terms
- distinctive multi-word phrases
- Latin or other quotations
- titles of works

Never choose the periodical's own title, section headings, advertisements or other boilerplate.

Respond ONLY with a JSON object like:
{"snippets": [{"original": "texto em português", "translated": "texte en français", "anchor_type": "properName"}]}
anchor_type is one of properName, date, number, technicalTerm, distinctivePhrase, latinQuote, title.
If nothing in the article is usable, respond with {"snippets": []}.`

// verifyInstructions encodes the conservative verification policy.
const verifyInstructions = `Decide whether the TARGET text (Portuguese) is a translation of the SOURCE text (French or English).

Be conservative. Shared names, dates or terms alone are NOT sufficient: they appear in unrelated texts about the same events. Only report a match when the narrative or structure corresponds, meaning the same sequence of events, arguments or passages in the same order.

match_type must be one of:
- "direct_translation": the target translates the source closely throughout
- "partial_translation": the target translates a substantial part of the source
- "adaptation": the target retells the source with significant changes
- "no_match": none of the above

List in confirmed_snippets only the snippets you located verbatim (or nearly verbatim) in the SOURCE text.
List in evidence_quotes pairs of corresponding passages.

Respond ONLY with a JSON object like:
{"is_match": true, "confidence": 0.0, "match_type": "no_match", "reason": "...", "confirmed_snippets": [{"original": "...", "translated": "..."}], "evidence_quotes": [{"target_quote": "...", "source_quote": "...", "position": "..."}]}`

const citationTemplate = `Generate a Chicago-style bibliography entry for the source document described below.

Respond ONLY with a JSON object like:
{"chicago_bibliography": "...", "fields": {"author": "...", "title": "...", "date": "..."}}
Use "Unknown" for any field you cannot determine.

Filename: %s
Metadata:
%s`

// IndexSourcePrompt builds the index_source prompt.
func IndexSourcePrompt(filename, text string) string {
	return fmt.Sprintf(indexSourceTemplate, filename, utils.Head(text, indexTextLimit))
}

// IndexTargetPrompt builds the index_target prompt.
func IndexTargetPrompt(filename, text string) string {
	return fmt.Sprintf(indexTargetTemplate, filename, utils.Head(text, indexTextLimit))
}

// SnippetPrompt builds the extract_snippets prompt for an article, with text capped at limit runes.
func SnippetPrompt(article *models.Article, limit int) string {
	var b strings.Builder
	b.WriteString(snippetInstructions)
	b.WriteString("\n\nArticle title: ")
	b.WriteString(article.Title)
	if article.PageRange != "" {
		b.WriteString("\nPages: ")
		b.WriteString(article.PageRange)
	}
	b.WriteString("\nArticle text:\n")
	b.WriteString(utils.Head(article.Text, limit))
	return b.String()
}

// VerifyPrompt builds the verify_match prompt. Both texts are capped at limit runes.
func VerifyPrompt(c *models.Candidate, limit int) string {
	var b strings.Builder
	b.WriteString(verifyInstructions)
	b.WriteString("\n\nSnippets that matched lexically:\n")
	for _, hit := range c.Supporting {
		fmt.Fprintf(&b, "- %q -> %q (%.0f%% of key terms found)\n",
			hit.Snippet.Original, hit.Snippet.Translated, hit.Ratio*100)
	}
	fmt.Fprintf(&b, "\nTARGET (%s):\n%s\n", c.Article.Title, utils.Head(c.Article.Text, limit))
	fmt.Fprintf(&b, "\nSOURCE (%s):\n%s", c.Document.DisplayName, utils.Head(c.Document.Text, limit))
	return b.String()
}

// CitationPrompt builds the generate_citation prompt from a document's oracle index,
// falling back to the beginning of its text when it was never indexed.
func CitationPrompt(doc *models.Document) string {
	var metadata string
	if len(doc.Index) > 0 && json.Valid(doc.Index) {
		metadata = string(doc.Index)
	} else {
		metadata = "(no index available) opening text: " + utils.Head(doc.Text, 2000)
	}
	return fmt.Sprintf(citationTemplate, doc.DisplayName, metadata)
}

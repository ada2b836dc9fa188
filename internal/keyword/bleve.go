package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/transmatch/internal/models"
)

const nameBoost = 2.0

// indexedDocument is the shape stored in bleve.
type indexedDocument struct {
	Fingerprint string `json:"fingerprint"`
	Side        string `json:"side"`
	Name        string `json:"name"`
	Stem        string `json:"stem"`
	Content     string `json:"content"`
}

// BleveIndex implements Index and TermDictionary on a bleve index.
type BleveIndex struct {
	index   bleve.Index
	speller *SpellChecker
}

// NewBleveIndex creates or opens a bleve index at path.
// Existing indexes are reopened as is; remove the directory after changing the mapping.
func NewBleveIndex(path string) (*BleveIndex, error) {
	b := &BleveIndex{}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", openErr)
		}
		b.index = index
	} else {
		index, err := bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index: %w", err)
		}
		b.index = index
	}
	b.speller = NewSpellChecker(b)
	return b, nil
}

func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer: lowercase + tokenize, no stemming.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", text)
	docMapping.AddFieldMappingsAt("name", text)
	docMapping.AddFieldMappingsAt("stem", text)

	kw := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("fingerprint", kw)
	docMapping.AddFieldMappingsAt("side", kw)

	im.DefaultMapping = docMapping
	return im
}

func docID(fingerprint string, side models.CorpusSide) string {
	return string(side) + ":" + fingerprint
}

// IndexDocument adds or replaces doc. Documents that failed extraction are ignored.
func (b *BleveIndex) IndexDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil || !doc.Extracted() {
		return nil
	}
	err := b.index.Index(docID(doc.Fingerprint, doc.Side), indexedDocument{
		Fingerprint: doc.Fingerprint,
		Side:        string(doc.Side),
		Name:        doc.DisplayName,
		Stem:        nameStem(doc.DisplayName),
		Content:     doc.Text,
	})
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.DisplayName, err)
	}
	b.speller.Invalidate()
	return nil
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(fingerprint string, side models.CorpusSide) error {
	return b.index.Delete(docID(fingerprint, side))
}

// Search matches q against document names and text, optionally restricted to one side.
// When nothing is found, Suggestion carries a spelling-corrected query if one exists.
func (b *BleveIndex) Search(ctx context.Context, q models.SearchQuery) (*Results, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var query blevequery.Query = b.textQuery(q.Query, q.Fuzzy)
	if q.Side != "" {
		side := bleve.NewTermQuery(string(q.Side))
		side.SetField("side")
		query = bleve.NewConjunctionQuery(query, side)
	}

	req := bleve.NewSearchRequest(query)
	req.Size = q.Limit
	req.Fields = []string{"fingerprint", "side", "name"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("content")

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	out := &Results{Hits: make([]*models.SearchHit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		h := &models.SearchHit{
			Fingerprint: stringField(hit.Fields, "fingerprint"),
			Side:        models.CorpusSide(stringField(hit.Fields, "side")),
			DisplayName: stringField(hit.Fields, "name"),
			Score:       hit.Score,
		}
		if frags := hit.Fragments["content"]; len(frags) > 0 {
			h.Excerpt = strings.TrimSpace(frags[0])
		}
		out.Hits = append(out.Hits, h)
	}
	if len(out.Hits) == 0 {
		if corrected := b.speller.Correct(q.Query); corrected != "" {
			out.Suggestion = corrected
		}
	}
	return out, nil
}

// textQuery ORs name and stem queries (boosted) with a content query. Fuzzy mode replaces
// each term with a fuzzy term query of edit distance 2 for spelling variants.
func (b *BleveIndex) textQuery(text string, fuzzy bool) blevequery.Query {
	field := func(name string, boost float64) blevequery.Query {
		terms := tokenize(text)
		if !fuzzy || len(terms) == 0 {
			mq := bleve.NewMatchQuery(text)
			mq.SetField(name)
			mq.SetBoost(boost)
			return mq
		}
		qs := make([]blevequery.Query, 0, len(terms))
		for _, t := range terms {
			fq := bleve.NewFuzzyQuery(t)
			fq.SetFuzziness(2)
			fq.SetField(name)
			fq.SetBoost(boost)
			qs = append(qs, fq)
		}
		return bleve.NewDisjunctionQuery(qs...)
	}
	return bleve.NewDisjunctionQuery(field("name", nameBoost), field("stem", nameBoost), field("content", 1))
}

// nameStem is the file name without its extension. The standard analyzer keeps
// "hugo.pdf" as one token, so the bare name is indexed on its own.
func nameStem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Terms returns every content term with its document frequency.
func (b *BleveIndex) Terms() (map[string]int, error) {
	dict, err := b.index.FieldDict("content")
	if err != nil {
		return nil, fmt.Errorf("read term dictionary: %w", err)
	}
	defer dict.Close()

	terms := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("read term dictionary: %w", err)
		}
		if entry == nil {
			return terms, nil
		}
		terms[entry.Term] = int(entry.Count)
	}
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

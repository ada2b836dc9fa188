package matcher

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/oracle"
)

// Defaults for the lexical filter.
const (
	DefaultThreshold   = 0.4
	DefaultTopK        = 3
	DefaultMaxSnippets = 4
)

type entry struct {
	doc  *models.Document
	text string
}

// Corpus holds the candidate-source documents of one run with their text prepared once.
type Corpus struct {
	entries []entry
}

// NewCorpus prepares docs in the given (insertion) order. Documents without text are kept
// so ordering stays stable, but never match.
func NewCorpus(docs []*models.Document) *Corpus {
	c := &Corpus{entries: make([]entry, 0, len(docs))}
	for _, d := range docs {
		c.entries = append(c.entries, entry{doc: d, text: PrepareText(d.Text)})
	}
	return c
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	return len(c.entries)
}

// Matcher extracts snippets for an article and filters the source corpus by them.
type Matcher struct {
	oracle      oracle.Oracle
	logger      *zap.Logger
	threshold   float64
	topK        int
	maxSnippets int
	textLimit   int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum match ratio for a snippet to count.
func WithThreshold(r float64) Option {
	return func(m *Matcher) {
		if r > 0 {
			m.threshold = r
		}
	}
}

// WithTopK sets how many candidates are kept per article.
func WithTopK(k int) Option {
	return func(m *Matcher) {
		if k > 0 {
			m.topK = k
		}
	}
}

// WithMaxSnippets caps the snippets used per article.
func WithMaxSnippets(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxSnippets = n
		}
	}
}

// WithTextLimit caps the article text sent to the oracle.
func WithTextLimit(n int) Option {
	return func(m *Matcher) {
		m.textLimit = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) {
		m.logger = l
	}
}

// New returns a Matcher using o for snippet extraction.
func New(o oracle.Oracle, opts ...Option) *Matcher {
	m := &Matcher{
		oracle:      o,
		logger:      zap.NewNop(),
		threshold:   DefaultThreshold,
		topK:        DefaultTopK,
		maxSnippets: DefaultMaxSnippets,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snippets asks the oracle for anchor snippets from the article.
// An empty result is not an error; oracle failures are returned as item-level errors.
func (m *Matcher) Snippets(ctx context.Context, article *models.Article) ([]models.Snippet, error) {
	raw, err := m.oracle.Invoke(ctx, oracle.TaskExtractSnippets, oracle.RoleLinguist, oracle.SnippetPrompt(article, m.textLimit))
	if err != nil {
		return nil, err
	}
	res, err := oracle.Decode[oracle.SnippetResult](oracle.TaskExtractSnippets, raw)
	if err != nil {
		return nil, err
	}
	return res.Usable(m.maxSnippets), nil
}

// Candidates scores every corpus document against each snippet and returns the
// ranked top-K documents that qualified for at least one snippet.
func (m *Matcher) Candidates(article *models.Article, snippets []models.Snippet, corpus *Corpus) []*models.Candidate {
	byDoc := make([]*models.Candidate, len(corpus.entries))
	for _, s := range snippets {
		terms := KeyTerms(s.Translated)
		if len(terms) == 0 {
			m.logger.Debug("snippet has no key terms", zap.String("snippet", s.Translated))
			continue
		}
		for i, e := range corpus.entries {
			ratio, matched := MatchRatio(terms, e.text)
			if ratio < m.threshold {
				continue
			}
			if byDoc[i] == nil {
				byDoc[i] = &models.Candidate{Article: article, Document: e.doc}
			}
			byDoc[i].MatchCount++
			byDoc[i].Supporting = append(byDoc[i].Supporting, models.SnippetHit{
				Snippet:      s,
				Ratio:        ratio,
				MatchedTerms: matched,
			})
		}
	}

	var cands []*models.Candidate
	for _, c := range byDoc {
		if c != nil {
			cands = append(cands, c)
		}
	}
	return Rank(cands, m.topK)
}

// Rank orders candidates by descending MatchCount, keeping the input order among ties,
// and returns at most k of them.
func Rank(cands []*models.Candidate, k int) []*models.Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].MatchCount > cands[j].MatchCount
	})
	if k > 0 && len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// Package verify asks the oracle to confirm lexical candidates and decides which
// verdicts become durable matches.
package verify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/oracle"
)

// Defaults for the persistence policy.
const (
	DefaultMinConfidence = 0.5
	DefaultFallbackRatio = 0.5
	DefaultTextLimit     = 6000
)

// Outcome is the result of verifying one candidate.
type Outcome struct {
	Verdict *oracle.Verdict
	// Record is the candidates-table row for this pair.
	Record *models.CandidateRecord
	// Match is set only when the verdict passes the persistence policy.
	Match *models.Match
}

// Persist reports whether the outcome should be stored as a match.
func (o *Outcome) Persist() bool {
	return o.Match != nil
}

// Verifier runs verify_match for candidates.
type Verifier struct {
	oracle        oracle.Oracle
	minConfidence float64
	fallbackRatio float64
	textLimit     int
	logger        *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMinConfidence sets the lowest confidence that is persisted.
func WithMinConfidence(c float64) Option {
	return func(v *Verifier) {
		if c > 0 {
			v.minConfidence = c
		}
	}
}

// WithFallbackRatio sets the lexical ratio a snippet needs to serve as fallback evidence.
func WithFallbackRatio(r float64) Option {
	return func(v *Verifier) {
		if r > 0 {
			v.fallbackRatio = r
		}
	}
}

// WithTextLimit caps each text sent for verification.
func WithTextLimit(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.textLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// New returns a Verifier.
func New(o oracle.Oracle, opts ...Option) *Verifier {
	v := &Verifier{
		oracle:        o,
		minConfidence: DefaultMinConfidence,
		fallbackRatio: DefaultFallbackRatio,
		textLimit:     DefaultTextLimit,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify asks the oracle to judge c. Oracle failures and malformed verdicts are
// returned as item-level errors from the oracle package.
func (v *Verifier) Verify(ctx context.Context, runID string, c *models.Candidate) (*Outcome, error) {
	raw, err := v.oracle.Invoke(ctx, oracle.TaskVerifyMatch, oracle.RoleDetective, oracle.VerifyPrompt(c, v.textLimit))
	if err != nil {
		return nil, err
	}
	verdict, err := oracle.Decode[oracle.Verdict](oracle.TaskVerifyMatch, raw)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Verdict: verdict,
		Record: &models.CandidateRecord{
			RunID:       runID,
			ArticleRef:  c.Article.Ref(),
			DocumentRef: c.Document.Fingerprint,
			Reason:      strings.TrimSpace(verdict.Reason),
			Confidence:  verdict.Score(),
			RawResponse: raw,
		},
	}
	v.logger.Debug("verdict",
		zap.String("article", c.Article.Label()),
		zap.String("document", c.Document.DisplayName),
		zap.Bool("is_match", verdict.Matched()),
		zap.String("type", string(verdict.MatchType)),
		zap.Float64("confidence", verdict.Score()))
	if !v.ShouldPersist(verdict) {
		return out, nil
	}
	out.Match = &models.Match{
		RunID:        runID,
		ArticleRef:   c.Article.Ref(),
		ArticleTitle: c.Article.Title,
		DocumentRef:  c.Document.Fingerprint,
		DocumentName: c.Document.DisplayName,
		MatchType:    verdict.MatchType,
		Confidence:   verdict.Score(),
		Evidence:     v.evidence(verdict, c.Supporting),
	}
	return out, nil
}

// ShouldPersist applies the policy: is_match, confidence at or above the minimum,
// and a match type other than no_match.
func (v *Verifier) ShouldPersist(verdict *oracle.Verdict) bool {
	return verdict.Matched() &&
		verdict.Score() >= v.minConfidence &&
		verdict.MatchType != models.MatchNone
}

// evidence prefers the snippets the oracle confirmed in the source text and falls
// back to strong lexical hits.
func (v *Verifier) evidence(verdict *oracle.Verdict, hits []models.SnippetHit) models.Evidence {
	ev := models.Evidence{Reason: strings.TrimSpace(verdict.Reason)}
	for _, q := range verdict.EvidenceQuotes {
		if q.TargetQuote == "" && q.SourceQuote == "" {
			continue
		}
		ev.Locations = append(ev.Locations, models.Location{
			TargetQuote: q.TargetQuote,
			SourceQuote: q.SourceQuote,
			Position:    q.Position,
		})
	}

	for _, s := range verdict.ConfirmedSnippets {
		if strings.TrimSpace(s.Translated) == "" && strings.TrimSpace(s.Original) == "" {
			continue
		}
		ev.Snippets = append(ev.Snippets, models.EvidenceSnippet{
			Original:   s.Original,
			Translated: s.Translated,
			Ratio:      ratioFor(hits, s.Translated),
		})
	}
	if len(ev.Snippets) > 0 {
		ev.Source = models.EvidenceConfirmed
		return ev
	}

	ev.Source = models.EvidenceLexical
	v.logger.Debug("no confirmed snippets, using lexical evidence", zap.Float64("min_ratio", v.fallbackRatio))
	for _, h := range hits {
		if h.Ratio < v.fallbackRatio {
			continue
		}
		ev.Snippets = append(ev.Snippets, models.EvidenceSnippet{
			Original:   h.Snippet.Original,
			Translated: h.Snippet.Translated,
			Ratio:      h.Ratio,
		})
	}
	return ev
}

func ratioFor(hits []models.SnippetHit, translated string) float64 {
	for _, h := range hits {
		if strings.EqualFold(strings.TrimSpace(h.Snippet.Translated), strings.TrimSpace(translated)) {
			return h.Ratio
		}
	}
	return 0
}

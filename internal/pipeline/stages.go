package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/corpus"
	"github.com/hyperjump/transmatch/internal/extract"
	"github.com/hyperjump/transmatch/internal/manifest"
	"github.com/hyperjump/transmatch/internal/matcher"
	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/oracle"
	"github.com/hyperjump/transmatch/internal/verify"
)

// Stats counts what a run did.
type Stats struct {
	SourceFiles       int `json:"sourceFiles"`
	SourceCached      int `json:"sourceCached"`
	SourceFailed      int `json:"sourceFailed"`
	TargetDocuments   int `json:"targetDocuments"`
	Articles          int `json:"articles"`
	SkippedReferences int `json:"skippedReferences"`
	ArticlesMatched   int `json:"articlesMatched"`
	Candidates        int `json:"candidates"`
	Verified          int `json:"verified"`
	MatchesStored     int `json:"matchesStored"`
	ItemErrors        int `json:"itemErrors"`
	Citations         int `json:"citations"`
}

func (s *Stats) snapshot() Stats {
	if s == nil {
		return Stats{}
	}
	return *s
}

// run carries the per-run collaborators.
type run struct {
	o      *Orchestrator
	id     string
	cfg    *config.Config
	oracle oracle.Oracle
	logger *zap.Logger
}

// checkpoint is consulted between items. Cancelling ctx counts as a stop request.
func (r *run) checkpoint(ctx context.Context) error {
	if r.o.stopRequested.Load() || ctx.Err() != nil {
		return errStopped
	}
	return nil
}

func (r *run) stopped(ctx context.Context) func() bool {
	return func() bool {
		return r.checkpoint(ctx) != nil
	}
}

func (r *run) stages(ctx context.Context) error {
	if err := r.step(ctx, StageExtractSource, r.extractSource); err != nil {
		return err
	}
	var articles []*models.Article
	err := r.step(ctx, StageSegmentTarget, func(ctx context.Context) error {
		var err error
		articles, err = r.segment(ctx)
		return err
	})
	if err != nil {
		return err
	}
	err = r.step(ctx, StageMatch, func(ctx context.Context) error {
		return r.matchArticles(ctx, articles)
	})
	if err != nil {
		return err
	}
	if !r.cfg.Matching.CitationsEnabled() {
		r.logger.Info("stage skipped", zap.String("stage", StageCite))
		return nil
	}
	return r.step(ctx, StageCite, r.cite)
}

// step runs one stage and classifies its error.
func (r *run) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	r.o.setStage(name)
	r.logger.Info("stage started", zap.String("stage", name))
	err := fn(ctx)
	if err == nil {
		r.logger.Info("stage finished", zap.String("stage", name))
		return nil
	}
	if errors.Is(err, errStopped) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		r.logger.Info("stage interrupted by stop request", zap.String("stage", name))
		return errStopped
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return err
	}
	return &FatalError{Stage: name, Err: err}
}

// extractSource makes sure every source file is in the extraction cache.
func (r *run) extractSource(ctx context.Context) error {
	paths, err := corpus.Scan(ctx, r.cfg.SourceCorpus.PDFFolder, r.cfg.SourceCorpus.Extensions)
	if err != nil {
		return fmt.Errorf("scan source corpus: %w", err)
	}
	r.logger.Info("source corpus scanned", zap.Int("files", len(paths)))

	for _, path := range paths {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		doc, hit, err := r.o.cache.Resolve(ctx, path, models.SideSource)
		if err != nil {
			if isItemError(err) {
				r.logger.Warn("source document skipped", zap.String("path", path), zap.Error(err))
				r.o.updateStats(func(s *Stats) { s.SourceFailed++; s.ItemErrors++ })
				continue
			}
			return err
		}
		r.o.updateStats(func(s *Stats) {
			s.SourceFiles++
			if hit {
				s.SourceCached++
			}
		})
		if !hit && r.cfg.AI.IndexDocuments {
			r.indexDocument(ctx, doc, oracle.TaskIndexSource)
		}
	}
	return nil
}

// segment reads the manifest and returns the articles of every selected sheet.
func (r *run) segment(ctx context.Context) ([]*models.Article, error) {
	tc := r.cfg.TargetCorpus
	wb, err := manifest.Read(tc.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	files, err := manifest.DiscoverFiles(ctx, tc.PDFFolder, tc.Extensions)
	if err != nil {
		return nil, fmt.Errorf("scan target corpus: %w", err)
	}
	for _, p := range files.Duplicates {
		r.logger.Warn("target file shadowed by an earlier file with the same normalized name",
			zap.String("path", p))
	}

	specs := make([]manifest.SheetSpec, 0, len(tc.Sheets))
	for _, s := range tc.Sheets {
		specs = append(specs, manifest.SheetSpec{Name: s.Name, FilenameColumn: s.FilenameColumn, Selected: s.Selected})
	}

	res, err := manifest.NewSegmenter(r.logger).Segment(ctx, wb, specs, files, r.o.cache, r.stopped(ctx))
	if err != nil {
		return nil, err
	}
	r.o.updateStats(func(s *Stats) {
		s.TargetDocuments = len(res.Documents)
		s.Articles = len(res.Articles)
		s.SkippedReferences = len(res.Skipped)
	})
	r.logger.Info("manifest segmented",
		zap.Int("articles", len(res.Articles)),
		zap.Int("documents", len(res.Documents)),
		zap.Int("skipped", len(res.Skipped)))
	if res.Stopped {
		return nil, errStopped
	}

	if r.cfg.AI.IndexDocuments {
		for _, doc := range res.Documents {
			if err := r.checkpoint(ctx); err != nil {
				return nil, err
			}
			if len(doc.Index) == 0 {
				r.indexDocument(ctx, doc, oracle.TaskIndexTarget)
			}
		}
	}
	return res.Articles, nil
}

// indexDocument stores the oracle's structured index for doc. Failures are logged.
func (r *run) indexDocument(ctx context.Context, doc *models.Document, kind oracle.TaskKind) {
	var (
		raw string
		err error
		out any
	)
	switch kind {
	case oracle.TaskIndexSource:
		raw, err = r.oracle.Invoke(ctx, kind, oracle.RoleArchivist, oracle.IndexSourcePrompt(doc.DisplayName, doc.Text))
		if err == nil {
			out, err = oracle.Decode[oracle.SourceIndex](kind, raw)
		}
	default:
		raw, err = r.oracle.Invoke(ctx, kind, oracle.RoleArchivist, oracle.IndexTargetPrompt(doc.DisplayName, doc.Text))
		if err == nil {
			out, err = oracle.Decode[oracle.TargetIndex](kind, raw)
		}
	}
	if err != nil {
		r.logger.Warn("document indexing failed", zap.String("file", doc.DisplayName), zap.Error(err))
		r.o.updateStats(func(s *Stats) { s.ItemErrors++ })
		return
	}
	data, err := json.Marshal(out)
	if err != nil {
		r.logger.Warn("document index not serializable", zap.String("file", doc.DisplayName), zap.Error(err))
		return
	}
	if err := r.o.store.SetDocumentIndex(ctx, doc.Fingerprint, doc.Side, data); err != nil {
		r.logger.Warn("failed to store document index", zap.String("file", doc.DisplayName), zap.Error(err))
		return
	}
	doc.Index = data
}

// matchArticles replaces the candidates table with this run's verified pairs and
// appends persisted matches.
func (r *run) matchArticles(ctx context.Context, articles []*models.Article) error {
	if err := r.o.store.ClearCandidates(ctx); err != nil {
		return fmt.Errorf("clear candidates: %w", err)
	}
	all, err := r.o.store.ListDocuments(ctx, models.SideSource)
	if err != nil {
		return fmt.Errorf("list source documents: %w", err)
	}
	docs := make([]*models.Document, 0, len(all))
	for _, d := range all {
		if d.Extracted() {
			docs = append(docs, d)
		}
	}
	pool := matcher.NewCorpus(docs)
	r.logger.Info("matching articles", zap.Int("articles", len(articles)), zap.Int("source_documents", pool.Len()))

	m := r.cfg.Matching
	match := matcher.New(r.oracle,
		matcher.WithThreshold(m.SnippetThreshold),
		matcher.WithTopK(m.TopCandidates),
		matcher.WithMaxSnippets(m.MaxSnippets),
		matcher.WithTextLimit(m.ArticleTextLimit),
		matcher.WithLogger(r.logger))
	verifier := verify.New(r.oracle,
		verify.WithMinConfidence(m.MinConfidence),
		verify.WithFallbackRatio(m.FallbackRatio),
		verify.WithTextLimit(m.VerifyTextLimit),
		verify.WithLogger(r.logger))

	for i, article := range articles {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		r.logger.Info("matching article",
			zap.Int("n", i+1), zap.Int("of", len(articles)), zap.String("article", article.Label()))

		snippets, err := match.Snippets(ctx, article)
		if err != nil {
			if isItemError(err) {
				r.logger.Warn("snippet extraction failed", zap.String("article", article.Label()), zap.Error(err))
				r.o.updateStats(func(s *Stats) { s.ItemErrors++ })
				continue
			}
			return err
		}
		if len(snippets) == 0 {
			r.logger.Info("no usable snippets", zap.String("article", article.Label()))
			continue
		}

		cands := match.Candidates(article, snippets, pool)
		r.o.updateStats(func(s *Stats) {
			s.Candidates += len(cands)
			if len(cands) > 0 {
				s.ArticlesMatched++
			}
		})
		for _, c := range cands {
			if err := r.checkpoint(ctx); err != nil {
				return err
			}
			if err := r.verifyCandidate(ctx, verifier, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) verifyCandidate(ctx context.Context, v *verify.Verifier, c *models.Candidate) error {
	out, err := v.Verify(ctx, r.id, c)
	if err != nil {
		if isItemError(err) {
			r.logger.Warn("verification failed",
				zap.String("article", c.Article.Label()), zap.String("document", c.Document.DisplayName), zap.Error(err))
			r.o.updateStats(func(s *Stats) { s.ItemErrors++ })
			return nil
		}
		return err
	}
	if err := r.o.store.InsertCandidate(ctx, out.Record); err != nil {
		return fmt.Errorf("store candidate: %w", err)
	}
	r.o.updateStats(func(s *Stats) { s.Verified++ })
	if !out.Persist() {
		r.logger.Debug("candidate rejected",
			zap.String("article", c.Article.Label()),
			zap.String("document", c.Document.DisplayName),
			zap.String("type", string(out.Verdict.MatchType)),
			zap.Float64("confidence", out.Verdict.Score()))
		return nil
	}
	if err := r.o.store.InsertMatch(ctx, out.Match); err != nil {
		return fmt.Errorf("store match: %w", err)
	}
	r.o.updateStats(func(s *Stats) { s.MatchesStored++ })
	r.logger.Info("match stored",
		zap.String("article", c.Article.Label()),
		zap.String("document", c.Document.DisplayName),
		zap.String("type", string(out.Match.MatchType)),
		zap.Float64("confidence", out.Match.Confidence))
	return nil
}

// cite writes a citation for every stored match still lacking one.
func (r *run) cite(ctx context.Context) error {
	pending, err := r.o.store.ListMatchesWithoutCitation(ctx)
	if err != nil {
		return fmt.Errorf("list uncited matches: %w", err)
	}
	citer := verify.NewCiter(r.oracle, r.logger)
	byDoc := make(map[string]*models.Citation)
	for _, m := range pending {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		cit, ok := byDoc[m.DocumentRef]
		if !ok {
			doc, err := r.o.store.LookupDocument(ctx, m.DocumentRef, models.SideSource)
			if err != nil {
				return fmt.Errorf("lookup cited document: %w", err)
			}
			if doc == nil {
				r.logger.Warn("matched document no longer cached", zap.String("document", m.DocumentRef))
				continue
			}
			cit, err = citer.Cite(ctx, doc)
			if err != nil {
				if isItemError(err) {
					r.logger.Warn("citation failed", zap.String("document", doc.DisplayName), zap.Error(err))
					r.o.updateStats(func(s *Stats) { s.ItemErrors++ })
					continue
				}
				return err
			}
			byDoc[m.DocumentRef] = cit
		}
		if err := r.o.store.SetMatchCitation(ctx, m.ID, cit); err != nil {
			return fmt.Errorf("store citation: %w", err)
		}
		r.o.updateStats(func(s *Stats) { s.Citations++ })
	}
	return nil
}

// isItemError reports whether err only skips the current item.
func isItemError(err error) bool {
	var ee *extract.ExtractionError
	return errors.As(err, &ee) || oracle.IsItemError(err)
}

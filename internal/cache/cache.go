// Package cache implements the content-addressed extraction cache.
//
// Documents are keyed by the SHA-256 of their raw bytes and the corpus side they
// belong to, so a renamed but byte-identical file is never extracted twice.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/extract"
	"github.com/hyperjump/transmatch/internal/fileid"
	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/storage"
)

// TextExtractor produces normalized text for a file.
type TextExtractor interface {
	Extract(path string) (*extract.Result, error)
}

// DocumentIndexer receives every newly stored document.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, doc *models.Document) error
}

// Cache resolves corpus files to extracted Documents, extracting only on a miss.
type Cache struct {
	store     storage.Store
	extractor TextExtractor
	indexer   DocumentIndexer
	logger    *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithIndexer feeds newly stored documents into idx. Indexing failures are logged only.
func WithIndexer(idx DocumentIndexer) Option {
	return func(c *Cache) {
		c.indexer = idx
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New returns a Cache backed by store.
func New(store storage.Store, extractor TextExtractor, opts ...Option) *Cache {
	c := &Cache{store: store, extractor: extractor, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats reports cache hits and misses since creation.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Lookup returns the extracted document for fingerprint, or nil on a miss.
// Documents whose last extraction failed count as a miss.
func (c *Cache) Lookup(ctx context.Context, fingerprint string, side models.CorpusSide) (*models.Document, error) {
	doc, err := c.store.LookupDocument(ctx, fingerprint, side)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if !doc.Extracted() {
		return nil, nil
	}
	return doc, nil
}

// Store records an extraction result. Storing an already extracted fingerprint is a no-op.
func (c *Cache) Store(ctx context.Context, fingerprint string, side models.CorpusSide, displayName, path string, res *extract.Result) (*models.Document, error) {
	doc := &models.Document{
		Fingerprint: fingerprint,
		Side:        side,
		DisplayName: displayName,
		Path:        path,
		Text:        res.Text,
		PageCount:   res.PageCount,
		LowText:     res.LowText,
		Status:      models.StatusExtracted,
	}
	if err := c.store.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	stored, err := c.store.LookupDocument(ctx, fingerprint, side)
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	if stored == nil {
		return nil, errors.New("cache store: document vanished after upsert")
	}
	return stored, nil
}

// Resolve returns the document for the file at path, extracting it only when the
// fingerprint is not cached yet. hit reports whether extraction was skipped.
// Unreadable or unparseable files return an *extract.ExtractionError; the failure is
// recorded on the document row without touching previously extracted text.
func (c *Cache) Resolve(ctx context.Context, path string, side models.CorpusSide) (doc *models.Document, hit bool, err error) {
	fp, err := fileid.FingerprintFile(path)
	if err != nil {
		return nil, false, &extract.ExtractionError{Path: path, Err: err}
	}

	doc, err = c.Lookup(ctx, fp, side)
	if err != nil {
		return nil, false, err
	}
	if doc != nil {
		c.hits.Add(1)
		c.logger.Debug("extraction cache hit", zap.String("path", path), zap.String("fingerprint", fp))
		return doc, true, nil
	}
	c.misses.Add(1)

	name := filepath.Base(path)
	res, extractErr := c.extractor.Extract(path)
	if extractErr != nil {
		pending := &models.Document{Fingerprint: fp, Side: side, DisplayName: name, Path: path}
		if markErr := c.store.MarkDocumentError(ctx, pending, extractErr.Error()); markErr != nil {
			return nil, false, fmt.Errorf("record extraction failure: %w", markErr)
		}
		var ee *extract.ExtractionError
		if !errors.As(extractErr, &ee) {
			extractErr = &extract.ExtractionError{Path: path, Err: extractErr}
		}
		return nil, false, extractErr
	}

	doc, err = c.Store(ctx, fp, side, name, path, res)
	if err != nil {
		return nil, false, err
	}
	if doc.LowText {
		c.logger.Warn("document has almost no text, it may need OCR",
			zap.String("path", path), zap.Int("pages", doc.PageCount), zap.Int("chars", len([]rune(doc.Text))))
	}
	if c.indexer != nil {
		if err := c.indexer.IndexDocument(ctx, doc); err != nil {
			c.logger.Warn("keyword indexing failed", zap.String("path", path), zap.Error(err))
		}
	}
	return doc, false, nil
}

// Package storage persists documents, per-run candidates and durable matches.
package storage

import (
	"context"
	"encoding/json"

	"github.com/hyperjump/transmatch/internal/models"
)

// Store defines the persistence operations used by the pipeline.
type Store interface {
	// Documents
	LookupDocument(ctx context.Context, fingerprint string, side models.CorpusSide) (*models.Document, error)
	UpsertDocument(ctx context.Context, doc *models.Document) error
	MarkDocumentError(ctx context.Context, doc *models.Document, cause string) error
	SetDocumentIndex(ctx context.Context, fingerprint string, side models.CorpusSide, index json.RawMessage) error
	ListDocuments(ctx context.Context, side models.CorpusSide) ([]*models.Document, error)
	CountDocuments(ctx context.Context, side models.CorpusSide) (int64, error)

	// Candidates (replaced every matching stage)
	ClearCandidates(ctx context.Context) error
	InsertCandidate(ctx context.Context, rec *models.CandidateRecord) error
	ListCandidates(ctx context.Context, minConfidence float64) ([]*models.CandidateRecord, error)

	// Matches (durable across runs)
	InsertMatch(ctx context.Context, m *models.Match) error
	ListMatches(ctx context.Context) ([]*models.Match, error)
	ListMatchesWithoutCitation(ctx context.Context) ([]*models.Match, error)
	SetMatchCitation(ctx context.Context, id string, c *models.Citation) error
	ClearMatches(ctx context.Context) error
	CountMatches(ctx context.Context) (int64, error)

	Close() error
}

// Package keyword keeps a full-text index of extracted corpus documents for ad-hoc lookup.
package keyword

import (
	"context"

	"github.com/hyperjump/transmatch/internal/models"
)

// Index is a searchable view of the extracted corpora.
type Index interface {
	IndexDocument(ctx context.Context, doc *models.Document) error
	Search(ctx context.Context, q models.SearchQuery) (*Results, error)
	DocCount() (uint64, error)
	Close() error
}

// Results holds search hits plus a corrected query when the original found nothing.
type Results struct {
	Hits       []*models.SearchHit `json:"hits"`
	Suggestion string              `json:"suggestion,omitempty"`
}

// TermDictionary exposes indexed terms and their document frequency for spelling suggestions.
type TermDictionary interface {
	Terms() (map[string]int, error)
}

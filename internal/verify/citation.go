package verify

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/oracle"
)

// Citer produces bibliography entries for matched source documents.
type Citer struct {
	oracle oracle.Oracle
	logger *zap.Logger
}

// NewCiter returns a Citer. A nil logger discards output.
func NewCiter(o oracle.Oracle, logger *zap.Logger) *Citer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Citer{oracle: o, logger: logger}
}

// Cite runs generate_citation for doc.
func (c *Citer) Cite(ctx context.Context, doc *models.Document) (*models.Citation, error) {
	raw, err := c.oracle.Invoke(ctx, oracle.TaskGenerateCitation, oracle.RoleBibliographer, oracle.CitationPrompt(doc))
	if err != nil {
		return nil, err
	}
	res, err := oracle.Decode[oracle.CitationResult](oracle.TaskGenerateCitation, raw)
	if err != nil {
		return nil, err
	}
	cit := res.Citation()
	c.logger.Debug("citation generated",
		zap.String("document", doc.DisplayName),
		zap.String("bibliography", cit.Bibliography))
	return cit, nil
}

package manifest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/extract"
	"github.com/hyperjump/transmatch/internal/models"
)

// SheetSpec selects a sheet and the column holding file references.
type SheetSpec struct {
	Name           string
	FilenameColumn string
	Selected       bool
}

// Resolver turns a file path into an extracted document, using the cache when possible.
type Resolver interface {
	Resolve(ctx context.Context, path string, side models.CorpusSide) (*models.Document, bool, error)
}

// Result is the outcome of segmenting a manifest.
type Result struct {
	Articles []*models.Article
	// Documents are the distinct target documents resolved, in first-use order.
	Documents []*models.Document
	// Skipped holds per-group problems: *ReferenceError, *SheetError or *extract.ExtractionError.
	Skipped []error
	// Stopped is set when the stop check interrupted segmentation.
	Stopped bool
}

// Segmenter joins manifest rows to target files and emits articles.
type Segmenter struct {
	logger *zap.Logger
}

// NewSegmenter returns a Segmenter. A nil logger disables logging.
func NewSegmenter(logger *zap.Logger) *Segmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Segmenter{logger: logger}
}

type group struct {
	key  string
	ref  string
	rows []Row
}

// Segment emits one article per manifest row whose filename reference matches a file
// in files. Each referenced file is resolved once per sheet no matter how many rows
// point at it. stopped is consulted before every group; when it returns true the
// partial result is returned with Stopped set.
// Only resolver failures other than extraction errors are returned as an error.
func (s *Segmenter) Segment(ctx context.Context, wb *Workbook, sheets []SheetSpec, files *FileIndex, resolver Resolver, stopped func() bool) (*Result, error) {
	res := &Result{}
	seenDocs := make(map[string]bool)

	for _, spec := range sheets {
		if !spec.Selected {
			s.logger.Debug("skipping unselected sheet", zap.String("sheet", spec.Name))
			continue
		}
		sheet := wb.Sheet(spec.Name)
		if sheet == nil {
			err := &SheetError{Sheet: spec.Name, Reason: "not found in manifest"}
			s.logger.Warn("manifest sheet skipped", zap.Error(err))
			res.Skipped = append(res.Skipped, err)
			continue
		}
		column, ok := findColumn(sheet.Columns, spec.FilenameColumn)
		if !ok {
			err := &SheetError{Sheet: spec.Name, Reason: fmt.Sprintf("column %q not found", spec.FilenameColumn)}
			s.logger.Warn("manifest sheet skipped", zap.Error(err))
			res.Skipped = append(res.Skipped, err)
			continue
		}

		groups := groupRows(sheet, column)
		s.logger.Info("segmenting manifest sheet",
			zap.String("sheet", sheet.Name), zap.Int("rows", len(sheet.Rows)), zap.Int("files", len(groups)))

		for _, g := range groups {
			if stopped != nil && stopped() {
				res.Stopped = true
				return res, nil
			}
			path, ok := files.Lookup(g.key)
			if !ok {
				err := &ReferenceError{Sheet: sheet.Name, Reference: g.ref, Rows: rowIndexes(g.rows)}
				s.logger.Warn("manifest reference skipped", zap.Error(err))
				res.Skipped = append(res.Skipped, err)
				continue
			}

			doc, hit, err := resolver.Resolve(ctx, path, models.SideTarget)
			if err != nil {
				var ee *extract.ExtractionError
				if errors.As(err, &ee) {
					s.logger.Warn("target extraction failed", zap.String("path", path), zap.Error(err))
					res.Skipped = append(res.Skipped, err)
					continue
				}
				return res, fmt.Errorf("resolve %s: %w", path, err)
			}
			s.logger.Info("target document ready",
				zap.String("file", doc.DisplayName), zap.Bool("cached", hit), zap.Int("articles", len(g.rows)))
			if !seenDocs[doc.Fingerprint] {
				seenDocs[doc.Fingerprint] = true
				res.Documents = append(res.Documents, doc)
			}

			for _, row := range g.rows {
				res.Articles = append(res.Articles, &models.Article{
					Title:               Title(sheet.Columns, row.Values),
					PageRange:           Pages(sheet.Columns, row.Values),
					Sheet:               sheet.Name,
					Row:                 row.Index,
					DocumentFingerprint: doc.Fingerprint,
					DocumentName:        doc.DisplayName,
					Text:                doc.Text,
					ManifestRow:         row.Values,
				})
			}
		}
	}
	return res, nil
}

// groupRows groups rows by normalized filename reference, in first-seen order.
// Rows with an empty reference contribute nothing.
func groupRows(sheet *Sheet, column string) []*group {
	var groups []*group
	byKey := make(map[string]*group)
	for _, row := range sheet.Rows {
		ref := row.Values[column]
		key := NormalizeName(ref)
		if key == "" {
			continue
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, ref: ref}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}
	return groups
}

// findColumn prefers an exact header match, then a case-insensitive one.
func findColumn(columns []string, name string) (string, bool) {
	for _, c := range columns {
		if c == name {
			return c, true
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return "", false
}

func rowIndexes(rows []Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Index
	}
	return out
}

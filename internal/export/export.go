// Package export writes stored matches as CSV or JSON to a local file or an S3 object.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/transmatch/internal/models"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" (case-insensitive). Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use csv or json)", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Columns is the CSV header.
var Columns = []string{
	"id", "run_id", "article_ref", "article_title", "document_ref", "document_name",
	"match_type", "confidence", "reason", "evidence_source", "snippets", "citation", "created_at",
}

// Write encodes matches to w.
func Write(w io.Writer, f Format, matches []*models.Match) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, matches)
	case FormatJSON:
		if matches == nil {
			matches = []*models.Match{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

func writeCSV(w io.Writer, matches []*models.Match) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, m := range matches {
		citation := ""
		if m.Citation != nil {
			citation = m.Citation.Bibliography
		}
		snippets := make([]string, 0, len(m.Evidence.Snippets))
		for _, s := range m.Evidence.Snippets {
			if s.Original != "" {
				snippets = append(snippets, s.Original+" => "+s.Translated)
			} else {
				snippets = append(snippets, s.Translated)
			}
		}
		created := ""
		if !m.CreatedAt.IsZero() {
			created = m.CreatedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			m.ID, m.RunID, m.ArticleRef, m.ArticleTitle, m.DocumentRef, m.DocumentName,
			string(m.MatchType), strconv.FormatFloat(m.Confidence, 'f', 2, 64),
			m.Evidence.Reason, string(m.Evidence.Source), strings.Join(snippets, " | "),
			citation, created,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Uploader stores an object in a bucket.
type Uploader interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// Exporter writes matches to a destination path or s3://bucket/key URL.
type Exporter struct {
	// NewUploader is called lazily for s3:// destinations.
	NewUploader func(ctx context.Context) (Uploader, error)
}

// Export encodes matches and writes them to dest. It returns the number of bytes written.
func (e *Exporter) Export(ctx context.Context, dest string, f Format, matches []*models.Match) (int, error) {
	var buf bytes.Buffer
	if err := Write(&buf, f, matches); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}

	if bucket, key, ok := ParseS3URL(dest); ok {
		if e.NewUploader == nil {
			return 0, fmt.Errorf("s3 export is not configured")
		}
		up, err := e.NewUploader(ctx)
		if err != nil {
			return 0, fmt.Errorf("create s3 client: %w", err)
		}
		n := buf.Len()
		if err := up.Put(ctx, bucket, key, &buf, f.ContentType()); err != nil {
			return 0, fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
		}
		return n, nil
	}

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return buf.Len(), nil
}

// ParseS3URL splits s3://bucket/key. ok is false for anything else, including a missing key.
func ParseS3URL(dest string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(dest, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Package extract provides text extraction and normalization for corpus documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LowTextThreshold is the normalized length below which a paged document is flagged.
const LowTextThreshold = 50

// Result is the normalized output of one extraction.
type Result struct {
	Text      string
	PageCount int
	// LowText is set when the document has pages but almost no text (likely scanned).
	LowText bool
}

// Extractor extracts normalized plain text from document files.
type Extractor struct {
	lowTextThreshold int
}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{lowTextThreshold: LowTextThreshold}
}

// SupportedExtensions lists the file extensions the extractor understands.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md", ".html", ".htm", ".docx", ".odt", ".rtf"}
}

// Supported reports whether ext (with leading dot, any case) is a known format.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// Extract reads the file at path and returns its normalized text and page count.
// Every failure is returned as an *ExtractionError.
func (e *Extractor) Extract(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}
	res, err := e.ExtractBytes(content, filepath.Ext(path))
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	return res, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"); unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Result, error) {
	var (
		raw   string
		pages = 1
		err   error
	)
	switch strings.ToLower(ext) {
	case ".pdf":
		raw, pages, err = extractPDF(content)
	case ".docx":
		raw, err = extractDOCX(content)
	case ".odt", ".rtf":
		raw, err = extractWithCat(content)
	case ".html", ".htm":
		raw, err = extractHTML(content)
	default:
		raw, err = extractPlain(content)
	}
	if err != nil {
		return nil, err
	}
	text := Normalize(raw)
	return &Result{
		Text:      text,
		PageCount: pages,
		LowText:   IsLowText(text, pages, e.lowTextThreshold),
	}, nil
}

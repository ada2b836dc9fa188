// Package models defines the core data structures shared by the matching pipeline.
package models

import (
	"encoding/json"
	"time"
)

// CorpusSide identifies which corpus a document belongs to.
type CorpusSide string

const (
	// SideTarget is the translated corpus described by the manifest.
	SideTarget CorpusSide = "target"
	// SideSource is the corpus of candidate originals.
	SideSource CorpusSide = "source"
)

// Valid reports whether s is a known corpus side.
func (s CorpusSide) Valid() bool {
	return s == SideTarget || s == SideSource
}

// ExtractionStatus is the lifecycle state of a document's text.
type ExtractionStatus string

const (
	StatusPending   ExtractionStatus = "pending"
	StatusExtracted ExtractionStatus = "extracted"
	StatusError     ExtractionStatus = "error"
)

// Document is a corpus file identified by the hash of its raw bytes.
type Document struct {
	Fingerprint string           `json:"fingerprint" db:"fingerprint"`
	Side        CorpusSide       `json:"corpus_side" db:"corpus_side"`
	DisplayName string           `json:"display_name" db:"display_name"`
	Path        string           `json:"path" db:"path"`
	Text        string           `json:"text,omitempty" db:"extracted_text"`
	PageCount   int              `json:"page_count" db:"page_count"`
	LowText     bool             `json:"low_text_warning" db:"low_text"`
	Status      ExtractionStatus `json:"status" db:"status"`
	Error       string           `json:"error,omitempty" db:"error"`
	Index       json.RawMessage  `json:"index,omitempty" db:"index_json"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// Extracted reports whether the document's text is available.
func (d *Document) Extracted() bool {
	return d != nil && d.Status == StatusExtracted
}

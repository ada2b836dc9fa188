package manifest

import (
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/transmatch/internal/corpus"
	"github.com/hyperjump/transmatch/internal/extract"
)

// NormalizeName reduces a filename reference to its join key: directory and known
// document extension stripped, NFC, lower-cased. "docs\GMP1833.PDF" becomes "gmp1833".
func NormalizeName(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		ref = ref[i+1:]
	}
	if ext := filepath.Ext(ref); ext != "" && extract.Supported(ext) {
		ref = strings.TrimSuffix(ref, ext)
	}
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(ref)))
}

// FileIndex maps normalized names to discovered target files.
type FileIndex struct {
	byName map[string]string
	// Duplicates lists paths ignored because an earlier file had the same normalized name.
	Duplicates []string
}

// DiscoverFiles scans dir once and indexes its files by normalized name.
// When two files normalize to the same name the first in path order wins.
func DiscoverFiles(ctx context.Context, dir string, exts []string) (*FileIndex, error) {
	paths, err := corpus.Scan(ctx, dir, exts)
	if err != nil {
		return nil, err
	}
	return NewFileIndex(paths...), nil
}

// NewFileIndex builds an index from explicit paths.
func NewFileIndex(paths ...string) *FileIndex {
	idx := &FileIndex{byName: make(map[string]string, len(paths))}
	for _, p := range paths {
		key := NormalizeName(filepath.Base(p))
		if _, dup := idx.byName[key]; dup {
			idx.Duplicates = append(idx.Duplicates, p)
			continue
		}
		idx.byName[key] = p
	}
	return idx
}

// Lookup returns the file for a normalized name.
func (f *FileIndex) Lookup(key string) (string, bool) {
	p, ok := f.byName[key]
	return p, ok
}

// Len returns the number of indexed files.
func (f *FileIndex) Len() int {
	return len(f.byName)
}

package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.pdf", "a.TXT", "skip.xlsx", "nested/c.pdf", ".hidden/d.pdf", ".e.pdf"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := Scan(context.Background(), dir, []string{".pdf", "txt"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.TXT"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "nested", "c.pdf"),
	}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestScan_missingDir(t *testing.T) {
	if _, err := Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		path string
		exts []string
		want bool
	}{
		{"a.pdf", []string{".pdf"}, true},
		{"a.PDF", []string{"pdf"}, true},
		{"a.docx", []string{".pdf"}, false},
		{"README", []string{".pdf"}, false},
		{"anything", nil, true},
	}
	for _, tt := range tests {
		if got := Allowed(tt.path, tt.exts); got != tt.want {
			t.Errorf("Allowed(%q, %v) = %v, want %v", tt.path, tt.exts, got, tt.want)
		}
	}
}

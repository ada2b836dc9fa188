package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Hello world\nLine 2"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "Hello world Line 2" {
		t.Errorf("got %q", got.Text)
	}
	if got.PageCount != 1 {
		t.Errorf("plain text should count as one page, got %d", got.PageCount)
	}
	if !got.LowText {
		t.Error("18 characters on one page should be flagged low-text")
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "hello�world" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_plainBOM(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes(append([]byte{0xEF, 0xBB, 0xBF}, "café"...), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "café" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_enoughText(t *testing.T) {
	e := NewExtractor()
	text := strings.Repeat("Gazeta Mercantil ", 5)
	got, err := e.ExtractBytes([]byte(text), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.LowText {
		t.Errorf("%d characters should not be low-text", len(got.Text))
	}
}

func TestExtract_plainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("  La  revo-\nlution\n\tde 1848  "), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Text != "La revolution de 1848" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	_, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil {
		t.Fatal("expected error")
	}
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
	if !strings.HasSuffix(extErr.Path, "missing.pdf") {
		t.Errorf("path = %q", extErr.Path)
	}
}

func TestExtract_corruptPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := NewExtractor().Extract(path)
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
}

func TestExtractBytes_unknownExtension(t *testing.T) {
	got, err := NewExtractor().ExtractBytes([]byte("plain body"), ".xyz")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "plain body" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_html(t *testing.T) {
	html := `<html><head><title>x</title><style>p{}</style></head>
<body><h1>Le Siècle</h1><p>Première <b>colonne</b></p><script>var a;</script><p>Paris</p></body></html>`
	got, err := NewExtractor().ExtractBytes([]byte(html), ".html")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "Le Siècle Première colonne Paris" {
		t.Errorf("got %q", got.Text)
	}
}

func minimalDocx(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	content := minimalDocx(`<w:p w:rsidR="00A1"><w:r><w:t>Searchable</w:t></w:r><w:r><w:t xml:space="preserve"> docx</w:t></w:r></w:p><w:p><w:r><w:t>content</w:t></w:r></w:p>`)
	got, err := NewExtractor().ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "Searchable docx content" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_docxContentTypesOverride(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	ct, _ := w.Create("[Content_Types].xml")
	_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>
</Types>`))
	fw, _ := w.Create("word/document2.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="x"><w:body><w:p><w:r><w:t>Content from document2</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "Content from document2" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_docxNotZip(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("plain"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
}

func TestExtractBytes_rtf(t *testing.T) {
	rtf := `{\rtf1\ansi{\fonttbl\f0\fswiss Helvetica;}\f0\pard Hello RTF world.\par}`
	got, err := NewExtractor().ExtractBytes([]byte(rtf), ".rtf")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if !strings.Contains(got.Text, "Hello RTF world") {
		t.Errorf("got %q", got.Text)
	}
}

func TestSupported(t *testing.T) {
	if !Supported(".PDF") || !Supported(".txt") {
		t.Error("pdf and txt should be supported")
	}
	if Supported(".xlsx") {
		t.Error("spreadsheets are manifests, not corpus documents")
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/transmatch/internal/keyword"
	"github.com/hyperjump/transmatch/internal/manifest"
	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/pipeline"
)

func sampleMatches() []*models.Match {
	return []*models.Match{
		{
			ID:           "m1",
			ArticleRef:   "1833#2@abc",
			ArticleTitle: "A luz de Paris",
			DocumentRef:  "0123456789abcdef",
			DocumentName: "dumas.pdf",
			MatchType:    models.MatchDirectTranslation,
			Confidence:   0.91,
			Evidence:     models.Evidence{Reason: "same opening scene", Source: models.EvidenceConfirmed},
			Citation:     &models.Citation{Bibliography: "Dumas, Alexandre. Impressions de voyage. 1833."},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	cases := map[string]OutputFormat{"": OutputTable, "table": OutputTable, "JSON": OutputJSON, " text ": OutputText}
	for in, want := range cases {
		got, err := ParseOutputFormat(in)
		if err != nil {
			t.Fatalf("ParseOutputFormat(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Name", "Count"}, [][]string{{"alpha", "1"}, {"beta"}}, []Alignment{AlignLeft, AlignRight})
	for _, sub := range []string{"Name", "Count", "alpha", "beta", "╭"} {
		if !strings.Contains(out, sub) {
			t.Errorf("table missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "NAME") || strings.Contains(out, "COUNT") {
		t.Errorf("headers should keep their casing:\n%s", out)
	}
	if RenderTable(nil, nil, nil) != "" {
		t.Error("no headers should render nothing")
	}
}

func TestWriteMatches_table(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, sampleMatches(), OutputTable); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"A luz de Paris", "dumas.pdf", "direct_translation", "0.91", "yes"} {
		if !strings.Contains(out, sub) {
			t.Errorf("output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteMatches_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, sampleMatches(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "A luz de Paris -> dumas.pdf") || !strings.Contains(out, "Impressions de voyage") {
		t.Errorf("unexpected text output:\n%s", out)
	}
}

func TestWriteMatches_jsonEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("got %q, want []", buf.String())
	}
}

func TestWriteMatches_emptyTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, nil, OutputTable); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No matches") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteCandidates(t *testing.T) {
	cands := []*models.CandidateRecord{{RunID: "r1", ArticleRef: "1833#2@abc", DocumentRef: "0123456789abcdef", Reason: "shared proper names", Confidence: 0.7}}
	var buf bytes.Buffer
	if err := WriteCandidates(&buf, cands, OutputTable); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "0123456789ab") || strings.Contains(out, "0123456789abcdef") {
		t.Errorf("document ref should be shortened:\n%s", out)
	}
	if !strings.Contains(out, "0.70") {
		t.Errorf("missing confidence:\n%s", out)
	}
}

func TestWriteSearchResults_json(t *testing.T) {
	res := &keyword.Results{Hits: []*models.SearchHit{{Fingerprint: "f1", Side: models.SideSource, DisplayName: "dumas.pdf", Score: 1.5}}}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "paris", res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Query string              `json:"query"`
		Hits  []*models.SearchHit `json:"hits"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "paris" || len(decoded.Hits) != 1 || decoded.Hits[0].Fingerprint != "f1" {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestWriteSearchResults_suggestion(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "pariss", &keyword.Results{Suggestion: "paris"}, OutputTable); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 0 documents") || !strings.Contains(out, `Did you mean "paris"?`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestWriteSearchResults_textExcerpt(t *testing.T) {
	res := &keyword.Results{Hits: []*models.SearchHit{{Side: models.SideTarget, DisplayName: "GMP1833.pdf", Score: 0.5, Excerpt: "a <mark>luz</mark> de Paris"}}}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "luz", res, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1. [target] GMP1833.pdf") || !strings.Contains(buf.String(), "<mark>luz</mark>") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteSheets(t *testing.T) {
	sheets := []manifest.SheetInfo{{Name: "1833", Columns: []string{"File", "Title"}, RowCount: 12, SuggestedColumn: "File"}}
	var buf bytes.Buffer
	if err := WriteSheets(&buf, sheets, OutputTable); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"1833", "12", "File, Title"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("missing %q:\n%s", sub, buf.String())
		}
	}
}

func TestWriteStatus(t *testing.T) {
	st := pipeline.Status{State: pipeline.StateIdle, RunID: "run-1", LastOutcome: pipeline.StateCompleted}
	st.Stats.MatchesStored = 3

	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputTable); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"State: idle", "Run: run-1", "Last outcome: completed", "Matches stored"} {
		if !strings.Contains(out, sub) {
			t.Errorf("missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, st, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"runId": "run-1"`) {
		t.Errorf("json status: %s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"multibyte", "lumière", 5, "lumiè..."},
		{"maxLen zero", "ab", 0, "ab"},
		{"maxLen negative", "ab", -1, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}

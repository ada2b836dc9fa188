// Package cli provides output helpers for the transmatch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hyperjump/transmatch/internal/keyword"
	"github.com/hyperjump/transmatch/internal/manifest"
	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/pipeline"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputTable is a rounded table (default).
	OutputTable OutputFormat = "table"
	// OutputText is plain line-oriented text.
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to a format. Empty means table.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputTable:
		return OutputTable, nil
	case OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, text or json)", s)
}

// Alignment of a table column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// RenderTable renders rows under headers, keeping the header casing. Short rows are
// padded; aligns may be shorter than headers, missing entries are left-aligned.
func RenderTable(headers []string, rows [][]string, aligns []Alignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteMatches writes stored matches.
func WriteMatches(w io.Writer, matches []*models.Match, format OutputFormat) error {
	if format == OutputJSON {
		if matches == nil {
			matches = []*models.Match{}
		}
		return writeJSON(w, matches)
	}
	if len(matches) == 0 {
		_, err := fmt.Fprintln(w, "No matches stored.")
		return err
	}
	if format == OutputText {
		for _, m := range matches {
			fmt.Fprintf(w, "%s -> %s [%s %.2f]\n", m.ArticleTitle, m.DocumentName, m.MatchType, m.Confidence)
			if m.Evidence.Reason != "" {
				fmt.Fprintf(w, "  %s\n", TruncateWords(m.Evidence.Reason, 40))
			}
			if m.Citation != nil && m.Citation.Bibliography != "" {
				fmt.Fprintf(w, "  %s\n", m.Citation.Bibliography)
			}
		}
		return nil
	}
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		cited := ""
		if m.Citation != nil {
			cited = "yes"
		}
		rows = append(rows, []string{
			Truncate(m.ArticleTitle, 40),
			Truncate(m.DocumentName, 32),
			string(m.MatchType),
			formatScore(m.Confidence),
			string(m.Evidence.Source),
			cited,
		})
	}
	_, err := fmt.Fprintln(w, RenderTable(
		[]string{"Article", "Source document", "Type", "Confidence", "Evidence", "Cited"},
		rows,
		[]Alignment{AlignLeft, AlignLeft, AlignLeft, AlignRight},
	))
	return err
}

// WriteCandidates writes the candidate rows of the latest run.
func WriteCandidates(w io.Writer, cands []*models.CandidateRecord, format OutputFormat) error {
	if format == OutputJSON {
		if cands == nil {
			cands = []*models.CandidateRecord{}
		}
		return writeJSON(w, cands)
	}
	if len(cands) == 0 {
		_, err := fmt.Fprintln(w, "No candidates recorded.")
		return err
	}
	if format == OutputText {
		for _, c := range cands {
			fmt.Fprintf(w, "%s -> %s %.2f %s\n", c.ArticleRef, shortRef(c.DocumentRef), c.Confidence, TruncateWords(c.Reason, 30))
		}
		return nil
	}
	rows := make([][]string, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, []string{c.ArticleRef, shortRef(c.DocumentRef), formatScore(c.Confidence), TruncateWords(c.Reason, 12)})
	}
	_, err := fmt.Fprintln(w, RenderTable(
		[]string{"Article", "Document", "Confidence", "Reason"},
		rows,
		[]Alignment{AlignLeft, AlignLeft, AlignRight},
	))
	return err
}

// WriteSearchResults writes corpus search hits for query.
func WriteSearchResults(w io.Writer, query string, res *keyword.Results, format OutputFormat) error {
	if res == nil {
		res = &keyword.Results{}
	}
	if format == OutputJSON {
		hits := res.Hits
		if hits == nil {
			hits = []*models.SearchHit{}
		}
		return writeJSON(w, struct {
			Query      string              `json:"query"`
			Hits       []*models.SearchHit `json:"hits"`
			Suggestion string              `json:"suggestion,omitempty"`
		}{query, hits, res.Suggestion})
	}

	fmt.Fprintf(w, "Found %d documents for %q\n", len(res.Hits), query)
	if len(res.Hits) == 0 {
		if res.Suggestion != "" {
			fmt.Fprintf(w, "Did you mean %q?\n", res.Suggestion)
		}
		return nil
	}
	if format == OutputText {
		for i, h := range res.Hits {
			fmt.Fprintf(w, "%d. [%s] %s (score %.4f)\n", i+1, h.Side, h.DisplayName, h.Score)
			if h.Excerpt != "" {
				fmt.Fprintf(w, "   %s\n", Truncate(h.Excerpt, 200))
			}
		}
		return nil
	}
	rows := make([][]string, 0, len(res.Hits))
	for i, h := range res.Hits {
		rows = append(rows, []string{strconv.Itoa(i + 1), string(h.Side), Truncate(h.DisplayName, 40), fmt.Sprintf("%.4f", h.Score), Truncate(h.Excerpt, 60)})
	}
	_, err := fmt.Fprintln(w, RenderTable(
		[]string{"#", "Side", "Document", "Score", "Excerpt"},
		rows,
		[]Alignment{AlignRight, AlignLeft, AlignLeft, AlignRight},
	))
	return err
}

// WriteSheets writes the sheet summaries of a manifest.
func WriteSheets(w io.Writer, sheets []manifest.SheetInfo, format OutputFormat) error {
	if format == OutputJSON {
		if sheets == nil {
			sheets = []manifest.SheetInfo{}
		}
		return writeJSON(w, sheets)
	}
	if format == OutputText {
		for _, s := range sheets {
			fmt.Fprintf(w, "%s (%d rows): %s\n", s.Name, s.RowCount, strings.Join(s.Columns, ", "))
		}
		return nil
	}
	rows := make([][]string, 0, len(sheets))
	for _, s := range sheets {
		rows = append(rows, []string{s.Name, strconv.Itoa(s.RowCount), Truncate(strings.Join(s.Columns, ", "), 60), s.SuggestedColumn})
	}
	_, err := fmt.Fprintln(w, RenderTable(
		[]string{"Sheet", "Rows", "Columns", "Filename column"},
		rows,
		[]Alignment{AlignLeft, AlignRight},
	))
	return err
}

// WriteStatus writes an orchestrator status snapshot.
func WriteStatus(w io.Writer, st pipeline.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "State: %s\n", st.State)
	if st.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", st.RunID)
	}
	if st.Stage != "" {
		fmt.Fprintf(w, "Stage: %s\n", st.Stage)
	}
	if st.LastOutcome != "" {
		fmt.Fprintf(w, "Last outcome: %s\n", st.LastOutcome)
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", st.LastError)
	}
	s := st.Stats
	if format == OutputText {
		fmt.Fprintf(w, "Articles: %d matched of %d, %d candidates, %d verified, %d stored\n",
			s.ArticlesMatched, s.Articles, s.Candidates, s.Verified, s.MatchesStored)
		return nil
	}
	rows := [][]string{
		{"Source files", strconv.Itoa(s.SourceFiles)},
		{"Source cached", strconv.Itoa(s.SourceCached)},
		{"Source failed", strconv.Itoa(s.SourceFailed)},
		{"Target documents", strconv.Itoa(s.TargetDocuments)},
		{"Articles", strconv.Itoa(s.Articles)},
		{"Skipped references", strconv.Itoa(s.SkippedReferences)},
		{"Articles matched", strconv.Itoa(s.ArticlesMatched)},
		{"Candidates", strconv.Itoa(s.Candidates)},
		{"Verified", strconv.Itoa(s.Verified)},
		{"Matches stored", strconv.Itoa(s.MatchesStored)},
		{"Item errors", strconv.Itoa(s.ItemErrors)},
		{"Citations", strconv.Itoa(s.Citations)},
	}
	_, err := fmt.Fprintln(w, RenderTable([]string{"Counter", "Value"}, rows, []Alignment{AlignLeft, AlignRight}))
	return err
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func shortRef(ref string) string {
	if len(ref) > 12 {
		return ref[:12]
	}
	return ref
}

// Truncate shortens s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

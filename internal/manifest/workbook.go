// Package manifest reads the target-corpus spreadsheet and segments it into articles.
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one non-blank data row. Index is the 1-based spreadsheet row number.
type Row struct {
	Index  int
	Values map[string]string
}

// Sheet is an ordered list of rows sharing the header of the sheet's first row.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Workbook is the ordered set of sheets in a manifest.
type Workbook struct {
	Sheets []*Sheet
}

// Sheet returns the sheet with the given name, or nil.
func (w *Workbook) Sheet(name string) *Sheet {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Read opens an .xlsx manifest.
func Read(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return readFile(f)
}

// ReadFrom reads an .xlsx manifest from r.
func ReadFrom(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return readFile(f)
}

// ReadBytes reads an .xlsx manifest held in memory.
func ReadBytes(content []byte) (*Workbook, error) {
	return ReadFrom(bytes.NewReader(content))
}

func readFile(f *excelize.File) (*Workbook, error) {
	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, buildSheet(name, rows))
	}
	return wb, nil
}

func buildSheet(name string, rows [][]string) *Sheet {
	s := &Sheet{Name: name}
	if len(rows) == 0 {
		return s
	}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		s.Columns = append(s.Columns, h)
	}
	for i, cells := range rows[1:] {
		values := make(map[string]string, len(s.Columns))
		blank := true
		for j, col := range s.Columns {
			if j >= len(cells) {
				break
			}
			v := strings.TrimSpace(cells[j])
			if v != "" {
				blank = false
			}
			values[col] = v
		}
		if blank {
			continue
		}
		s.Rows = append(s.Rows, Row{Index: i + 2, Values: values})
	}
	return s
}

// SheetInfo summarizes a sheet for configuration.
type SheetInfo struct {
	Name            string   `json:"name"`
	Columns         []string `json:"columns"`
	RowCount        int      `json:"rowCount"`
	SuggestedColumn string   `json:"suggestedFilenameColumn,omitempty"`
}

// Info lists every sheet with its columns and a guess at the filename column.
func (w *Workbook) Info() []SheetInfo {
	out := make([]SheetInfo, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		info := SheetInfo{Name: s.Name, Columns: s.Columns, RowCount: len(s.Rows)}
		for _, c := range s.Columns {
			if strings.EqualFold(c, "file") {
				info.SuggestedColumn = c
				break
			}
		}
		out = append(out, info)
	}
	return out
}

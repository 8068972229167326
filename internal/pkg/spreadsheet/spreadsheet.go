// Package spreadsheet reads the first sheet of a CSV or XLSX file into a header
// row and data rows, keeping XLSX rich-text runs for selected columns.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for any extension other than .csv and .xlsx.
var ErrUnsupportedFormat = errors.New("spreadsheet: unsupported format")

const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

// Run is one formatted fragment of a rich-text cell.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
}

// Cell is one value. Runs is only set for XLSX cells of a rich column that carry formatting.
type Cell struct {
	Text string
	Runs []Run
}

// Table is the header row plus the data rows of the first sheet.
type Table struct {
	// Header holds the header names trimmed of surrounding whitespace.
	Header []string
	Rows   [][]Cell
}

// Index returns the column index of name (case-sensitive), or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Value returns the cell of row at column col, or the zero Cell when the row is short.
func (t *Table) Value(row, col int) Cell {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return Cell{}
	}
	return t.Rows[row][col]
}

// Read parses r according to ext (with leading dot, any case).
// richColumns names the header columns whose XLSX rich-text runs are kept.
func Read(r io.Reader, ext string, richColumns ...string) (*Table, error) {
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ExtCSV:
		return readCSV(r)
	case ExtXLSX:
		return readXLSX(r, richColumns)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func readCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: read csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Header: trimAll(header), Rows: make([][]Cell, 0, len(records)-1)}
	for _, rec := range records[1:] {
		row := make([]Cell, len(rec))
		for i, v := range rec {
			row[i] = Cell{Text: v}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func readXLSX(r io.Reader, richColumns []string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: trimAll(rows[0]), Rows: make([][]Cell, 0, len(rows)-1)}

	rich := make(map[int]bool, len(richColumns))
	for _, name := range richColumns {
		if i := t.Index(name); i >= 0 {
			rich[i] = true
		}
	}

	for ri, rec := range rows[1:] {
		row := make([]Cell, len(rec))
		for ci, v := range rec {
			row[ci] = Cell{Text: v}
			if !rich[ci] || v == "" {
				continue
			}
			// header is sheet row 1, so data row ri sits on sheet row ri+2
			runs, err := richRuns(f, sheet, ci+1, ri+2)
			if err != nil {
				return nil, err
			}
			row[ci].Runs = runs
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func richRuns(f *excelize.File, sheet string, col, row int) ([]Run, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	rts, err := f.GetCellRichText(sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: rich text %s: %w", cell, err)
	}

	var runs []Run
	formatted := false
	for _, rt := range rts {
		run := Run{Text: rt.Text}
		if rt.Font != nil {
			run.Bold = rt.Font.Bold
			run.Italic = rt.Font.Italic
			run.Underline = rt.Font.Underline != "" && rt.Font.Underline != "none"
		}
		formatted = formatted || run.Bold || run.Italic || run.Underline
		runs = append(runs, run)
	}
	if !formatted {
		return nil, nil
	}
	return runs, nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// Package report defines the tabular result every extractor produces.
package report

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrArity is returned by Validate when a row is wider or narrower than the header.
var ErrArity = errors.New("row arity does not match header")

// Row is one line of a table. Cells are strings or ints.
type Row []any

// Table is a fixed header plus homogeneous rows.
type Table struct {
	Header []string
	Rows   []Row
}

// New creates an empty table with the given column names.
func New(header ...string) *Table {
	return &Table{Header: header}
}

// Add appends a row. A row of the wrong width is a programming error and panics.
func (t *Table) Add(cells ...any) {
	if len(cells) != len(t.Header) {
		panic(fmt.Sprintf("report: row has %d cells, header has %d", len(cells), len(t.Header)))
	}
	t.Rows = append(t.Rows, Row(cells))
}

// Len returns the number of data rows, not counting the header.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Validate checks that every row has the header's arity.
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("%w: row %d has %d cells, header has %d", ErrArity, i, len(row), len(t.Header))
		}
	}
	return nil
}

// Records renders the header followed by every row as strings.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Header...))
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, cell := range row {
			rec[i] = Format(cell)
		}
		out = append(out, rec)
	}
	return out
}

// Format renders a single cell.
func Format(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Package frame holds the minimal row/column table the analytics packages
// work on. Cells are strings, the shape excelize and encoding/csv hand back;
// numeric columns are parsed on access.
package frame

import (
	"fmt"
	"strconv"
	"strings"

	"choicemetrics/internal/errs"
)

type Frame struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// New builds a Frame from a header row and data rows. Short rows are padded
// with empty cells so every row has one cell per column. Both inputs are
// copied; the caller's slices stay untouched.
func New(header []string, rows [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, errs.Value("frame requires a non-empty header")
	}
	cols := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, errs.Value("column %d has an empty name", i)
		}
		if _, ok := index[name]; ok {
			return nil, errs.Value("duplicate column %q", name)
		}
		cols[i] = name
		index[name] = i
	}
	copied := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) > len(cols) {
			return nil, errs.Value("row %d has %d cells, header has %d", i, len(r), len(cols))
		}
		row := make([]string, len(cols))
		copy(row, r)
		copied[i] = row
	}
	return &Frame{header: cols, index: index, rows: copied}, nil
}

func (f *Frame) Len() int { return len(f.rows) }

func (f *Frame) Columns() []string {
	out := make([]string, len(f.header))
	copy(out, f.header)
	return out
}

func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the cells of one column in row order.
func (f *Frame) Column(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errs.Schema("%q is not a column in the data", name)
	}
	out := make([]string, len(f.rows))
	for r, row := range f.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Floats parses a column as float64 values.
func (f *Frame) Floats(name string) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for r, cell := range col {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, errs.Value("column %q row %d: %q is not numeric", name, r, cell)
		}
		out[r] = v
	}
	return out, nil
}

// Filter keeps the rows where mask is true.
func (f *Frame) Filter(mask []bool) (*Frame, error) {
	if len(mask) != len(f.rows) {
		return nil, errs.Value("mask length %d does not match %d rows", len(mask), len(f.rows))
	}
	var kept [][]string
	for r, keep := range mask {
		if keep {
			kept = append(kept, f.rows[r])
		}
	}
	out := &Frame{header: f.header, index: f.index, rows: kept}
	return out, nil
}

// Unique returns the distinct values of a column in first-seen order.
func (f *Frame) Unique(name string) ([]string, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(col))
	var out []string
	for _, v := range col {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Select returns a frame holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	idx := make([]int, len(names))
	for j, name := range names {
		i, ok := f.index[name]
		if !ok {
			return nil, errs.Schema("%q is not a column in the data", name)
		}
		idx[j] = i
	}
	rows := make([][]string, len(f.rows))
	for r, row := range f.rows {
		out := make([]string, len(idx))
		for j, i := range idx {
			out[j] = row[i]
		}
		rows[r] = out
	}
	header := append([]string{}, names...)
	index := make(map[string]int, len(header))
	for j, name := range header {
		index[name] = j
	}
	return &Frame{header: header, index: index, rows: rows}, nil
}

// Row returns one row. The slice aliases internal storage; callers must not
// mutate it.
func (f *Frame) Row(r int) []string { return f.rows[r] }

// Cell returns a single value by row and column name.
func (f *Frame) Cell(r int, name string) (string, error) {
	i, ok := f.index[name]
	if !ok {
		return "", errs.Schema("%q is not a column in the data", name)
	}
	if r < 0 || r >= len(f.rows) {
		return "", fmt.Errorf("row %d out of range", r)
	}
	return f.rows[r][i], nil
}

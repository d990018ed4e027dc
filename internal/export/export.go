// Package export writes analysis results to CSV files or Excel workbooks.
// Excel export replaces a sheet of the same name when the workbook already
// exists, so repeated runs update reports in place.
package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"choicemetrics/internal/errs"
)

const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
)

// Table is one exportable grid. Name becomes the Excel sheet name.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

type Exporter struct {
	path   string
	format string
}

func New(path, format string) (*Exporter, error) {
	if format != FormatCSV && format != FormatExcel {
		return nil, errs.Value("%q is not a supported format; valid options are [%s %s]", format, FormatCSV, FormatExcel)
	}
	if path == "" {
		return nil, errs.Value("export path is required")
	}
	return &Exporter{path: path, format: format}, nil
}

// Export writes the tables. CSV supports exactly one table per file.
func (e *Exporter) Export(tables ...Table) error {
	if len(tables) == 0 {
		return errs.Value("nothing to export")
	}
	if e.format == FormatCSV {
		if len(tables) > 1 {
			return errs.Value("format csv does not support multiple tables; use excel")
		}
		return e.writeCSV(tables[0])
	}
	return e.writeExcel(tables)
}

func (e *Exporter) writeCSV(t Table) error {
	fh, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer fh.Close()
	w := csv.NewWriter(fh)
	if err := w.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		if err := w.Write(cells); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (e *Exporter) writeExcel(tables []Table) error {
	var f *excelize.File
	var err error
	fresh := false
	if _, statErr := os.Stat(e.path); statErr == nil {
		f, err = excelize.OpenFile(e.path)
		if err != nil {
			return fmt.Errorf("open workbook: %w", err)
		}
	} else {
		f = excelize.NewFile()
		fresh = true
	}
	defer f.Close()

	// a scratch sheet keeps the workbook non-empty while sheets of the same
	// name are dropped and rewritten
	const scratch = "__export__"
	if _, err := f.NewSheet(scratch); err != nil {
		return fmt.Errorf("create scratch sheet: %w", err)
	}

	for _, t := range tables {
		if idx, _ := f.GetSheetIndex(t.Name); idx >= 0 {
			if err := f.DeleteSheet(t.Name); err != nil {
				return fmt.Errorf("replace sheet %q: %w", t.Name, err)
			}
		}
		if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("create sheet %q: %w", t.Name, err)
		}
		header := make([]any, len(t.Header))
		for i, h := range t.Header {
			header[i] = h
		}
		if err := setRow(f, t.Name, 1, header); err != nil {
			return err
		}
		for r, row := range t.Rows {
			if err := setRow(f, t.Name, r+2, row); err != nil {
				return err
			}
		}
	}
	if fresh {
		// drop the default sheet unless a table claimed its name
		if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 {
			if _, claimed := firstTable(tables, "Sheet1"); !claimed {
				_ = f.DeleteSheet("Sheet1")
			}
		}
	}
	if err := f.DeleteSheet(scratch); err != nil {
		return fmt.Errorf("drop scratch sheet: %w", err)
	}
	return f.SaveAs(e.path)
}

func firstTable(tables []Table, name string) (Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(v)
	}
}

package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	headerFill     = "366092"
	maxSheetName   = 31
	defaultColSize = 16
)

// workbook wraps an excelize file with the report's table conventions.
type workbook struct {
	f           *excelize.File
	headerStyle int
	sheets      int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("export: header style: %w", err)
	}
	return &workbook{f: f, headerStyle: style}, nil
}

// addTable writes header + rows into a new sheet. The first call reuses the
// default sheet excelize creates.
func (w *workbook) addTable(name string, header []string, rows [][]any) error {
	name = sheetName(name)
	if w.sheets == 0 {
		if err := w.f.SetSheetName(w.f.GetSheetName(0), name); err != nil {
			return fmt.Errorf("export: sheet %s: %w", name, err)
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("export: sheet %s: %w", name, err)
	}
	w.sheets++

	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("export: %s header: %w", name, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(name, cell, &rows[i]); err != nil {
			return fmt.Errorf("export: %s row %d: %w", name, i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(name, "A1", lastCol+"1", w.headerStyle); err != nil {
		return err
	}
	if err := w.f.SetColWidth(name, "A", lastCol, defaultColSize); err != nil {
		return err
	}
	if len(rows) > 0 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1)
		if err := w.f.AutoFilter(name, ref, nil); err != nil {
			return fmt.Errorf("export: %s autofilter: %w", name, err)
		}
	}
	return nil
}

func (w *workbook) saveAs(path string) error {
	w.f.SetActiveSheet(0)
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func (w *workbook) close() { _ = w.f.Close() }

// sheetName strips characters Excel rejects and truncates to 31 runes.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, s)
	if r := []rune(s); len(r) > maxSheetName {
		s = string(r[:maxSheetName])
	}
	return s
}

package export

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName   = "Data"
	columnWidth = 20
)

// XLSX renders a single "Data" worksheet with a header row and typed cells.
type XLSX struct{}

func (XLSX) Format() string { return "xlsx" }
func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) DefaultFilename() string { return "chatbot_data.xlsx" }

func (XLSX) Render(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if len(t.Columns) > 0 {
		last, err := excelize.ColumnNumberToName(len(t.Columns))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, "A", last, columnWidth); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	for i, col := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheetName, cell, col); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			if v.Type == gjson.Null {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, xlsxValue(v)); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func xlsxValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.True, gjson.False:
		return v.Bool()
	default:
		return cellText(v)
	}
}

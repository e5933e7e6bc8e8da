package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

// SheetName is the worksheet holding exported transactions.
const SheetName = "Transactions"

// WriteXLSX writes a workbook with one header row and one row per record.
// Dates become ISO strings and amount columns become numbers when they parse.
func WriteXLSX(w io.Writer, records []entity.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	cols := entity.Columns(records)
	for i, h := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	if len(cols) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			_ = f.SetCellStyle(SheetName, "A1", last, style)
		}
	}

	for r, rec := range records {
		row := r + 2
		for c, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			var v any = cellText(rec, col)
			if col == string(constants.FieldPage) && rec.Page > 0 {
				v = rec.Page
			} else if amountColumns[col] {
				if d, ok := NormalizeAmount(rec.Get(col)); ok {
					v = d.InexactFloat64()
				}
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
		}
	}

	for i, col := range cols {
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, name, name, columnWidth(col))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func columnWidth(col string) float64 {
	switch constants.Field(col) {
	case constants.FieldDate:
		return 14
	case constants.FieldDescription:
		return 48
	case constants.FieldPage:
		return 8
	}
	if amountColumns[col] {
		return 16
	}
	return 20
}

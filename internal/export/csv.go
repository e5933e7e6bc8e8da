package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

// WriteCSV writes the same columns as WriteXLSX, all as text.
func WriteCSV(w io.Writer, records []entity.Record) error {
	out := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	cols := entity.Columns(records)
	if err := out.Write(cols); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, col := range cols {
			row[i] = cellText(rec, col)
		}
		if err := out.Write(row); err != nil {
			return fmt.Errorf("csv row: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}

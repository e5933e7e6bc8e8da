// Package export writes extracted records as XLSX, CSV or JSON.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/postprocess"
)

var reNotAmount = regexp.MustCompile(`[^\d.\-]`)

// amountColumns are written as numbers where they parse.
var amountColumns = map[string]bool{
	string(constants.FieldDebit):   true,
	string(constants.FieldCredit):  true,
	string(constants.FieldAmount):  true,
	string(constants.FieldBalance): true,
}

// NormalizeAmount parses "₦1,234.50", "(200.00)" and similar into a decimal.
// Parentheses mean a negative amount.
func NormalizeAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	cleaned := reNotAmount.ReplaceAllString(s, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative && d.IsPositive() {
		d = d.Neg()
	}
	return d, true
}

// NormalizeDate renders a statement date as YYYY-MM-DD, or returns it unchanged.
func NormalizeDate(s string) string {
	return postprocess.NormalizeDate(s)
}

// Writer dispatches on output format.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// Write encodes records in format (xlsx, csv or json) to w.
func (x *Writer) Write(w io.Writer, format string, records []entity.Record) error {
	start := time.Now()
	format = constants.NormalizeExt(format)

	var err error
	switch format {
	case constants.FormatXLSX:
		err = WriteXLSX(w, records)
	case constants.FormatCSV:
		err = WriteCSV(w, records)
	case constants.FormatJSON:
		err = WriteJSON(w, records)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return err
	}
	x.logger.Info("export.ok", "format", format, "rows", len(records), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// cellText is the exported string form of one field.
func cellText(rec entity.Record, col string) string {
	v := rec.Get(col)
	if col == string(constants.FieldDate) && v != "" {
		return NormalizeDate(v)
	}
	return v
}

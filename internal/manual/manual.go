// Package manual parses pasted or uploaded CSV transactions. Columns are
// mapped by header name rather than by the line patterns used for PDF text.
package manual

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

// Parser maps CSV rows onto records.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse reads a header row followed by data rows. Recognized headers fill
// record fields, anything else is kept in Extra. Rows with no values are
// skipped.
func (p *Parser) Parse(r io.Reader) ([]entity.Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, common.NewAppError(common.CodeInvalidInput, "no CSV data provided", common.ErrInvalidInput)
	}

	rows, err := gocsv.DefaultCSVReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, fmt.Sprintf("malformed CSV: %v", err), common.ErrInvalidInput)
	}
	if len(rows) == 0 {
		return nil, common.NewAppError(common.CodeInvalidInput, "no CSV data provided", common.ErrInvalidInput)
	}

	cols, unmapped := columnTargets(rows[0])
	var (
		out     []entity.Record
		skipped int
	)
	for _, row := range rows[1:] {
		rec, ok := recordFromRow(cols, row)
		if !ok {
			skipped++
			continue
		}
		out = append(out, rec)
	}

	if len(unmapped) > 0 {
		p.logger.Debug("unrecognized csv columns kept as extra fields", "columns", unmapped)
	}
	p.logger.Info("manual csv parsed", "rows", len(rows)-1, "records", len(out), "skipped", skipped)

	if len(out) == 0 {
		return nil, common.ErrExtractionEmpty
	}
	return out, nil
}

// column says where one CSV column lands on a record.
type column struct {
	field constants.Field
	extra string // Extra key when field is unset; empty drops the column
}

// columnTargets resolves headers left to right. Later synonyms of a field
// already claimed are kept in Extra under their own header.
func columnTargets(header []string) ([]column, []string) {
	fields := constants.HeaderFields(header)
	cols := make([]column, len(header))
	var unmapped []string
	for i, h := range header {
		if fields[i] != "" {
			cols[i].field = fields[i]
			continue
		}
		if name := strings.TrimSpace(h); name != "" {
			cols[i].extra = name
			unmapped = append(unmapped, name)
		}
	}
	return cols, unmapped
}

func recordFromRow(cols []column, row []string) (entity.Record, bool) {
	var rec entity.Record
	hasValue := false
	for i, raw := range row {
		if i >= len(cols) {
			break
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		hasValue = true
		switch c := cols[i]; {
		case c.field != "":
			rec.Set(string(c.field), value)
		case c.extra != "":
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[c.extra] = value
		}
	}
	return rec, hasValue
}

// ParseString is Parse over an in-memory string.
func (p *Parser) ParseString(s string) ([]entity.Record, error) {
	return p.Parse(strings.NewReader(s))
}

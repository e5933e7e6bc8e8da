package parsefields

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

// PageBreakMarker separates pages in whole-document text. Lines carrying it
// are never parsed.
const PageBreakMarker = "\f"

var reLineBreak = regexp.MustCompile(`\r?\n`)

// Parser turns raw page text into candidate records.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseLines parses every line that carries both a date and an amount and
// tags the results with page. A line that fails is skipped.
func (p *Parser) ParseLines(text string, page int) []entity.Record {
	var out []entity.Record
	for i, raw := range reLineBreak.Split(text, -1) {
		if strings.Contains(raw, PageBreakMarker) {
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" || !HasDateAndAmount(line) {
			continue
		}
		rec, ok, err := p.parseLine(line)
		if err != nil {
			p.logger.Debug("skipping unparseable line", "page", page, "line", i+1, "error", err)
			continue
		}
		if !ok {
			continue
		}
		rec.Page = page
		out = append(out, rec)
	}
	return out
}

func (p *Parser) parseLine(line string) (rec entity.Record, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic parsing line: %v", r)
		}
	}()
	rec, ok = ExtractFields(line)
	return rec, ok, nil
}

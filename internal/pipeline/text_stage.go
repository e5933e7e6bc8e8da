package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/document"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline/parsefields"
)

const (
	textBandStart = 20
	textBandEnd   = 80
)

// textLayerStage reads embedded text page by page.
type textLayerStage struct {
	maxPages int
	parser   *parsefields.Parser
}

func (s *textLayerStage) extract(ctx context.Context, doc document.Document, st *runState) ([]entity.Record, error) {
	n := min(doc.NumPages(), s.maxPages)
	backend := string(constants.BackendTextLayer)
	st.logger.Info("text layer extraction started", "pages", doc.NumPages(), "processing", n)

	var (
		recs  []entity.Record
		table *parsefields.Table
	)
	texts := make([]string, 0, n)
	for p := 1; p <= n; p++ {
		if err := st.checkpoint(ctx); err != nil {
			return nil, err
		}
		items, err := doc.PageText(ctx, p)
		if err != nil {
			st.logger.Warn("page text unavailable", "page", p, "error", err)
			st.metrics.PageFailed(backend, "read")
		}
		text := document.JoinItems(items)
		texts = append(texts, text)

		var page []entity.Record
		page, table = s.parser.ParseTable(cells(items), p, table)
		method := "table"
		if len(page) == 0 {
			page = s.parser.ParseLines(text, p)
			method = "lines"
		}
		st.logger.Debug("page parsed", "page", p, "chars", len(text), "records", len(page), "method", method)
		recs = append(recs, page...)
		st.metrics.PageProcessed(backend)
		st.report(textBandStart+(textBandEnd-textBandStart)*p/n, fmt.Sprintf("Reading page %d of %d", p, n))
	}
	if len(recs) > 0 {
		return recs, nil
	}

	st.logger.Info("no records on individual pages, re-parsing whole document")
	whole, err := s.wholeDocument(ctx, doc, texts, st)
	if err != nil {
		return nil, err
	}
	recs = s.parser.ParseLines(whole, 1)
	if len(recs) == 0 {
		return nil, common.ErrExtractionEmpty
	}
	return recs, nil
}

// wholeDocument joins every page's text with page-break markers, preferring
// the document's alternate plain-text path where it yields anything.
func (s *textLayerStage) wholeDocument(ctx context.Context, doc document.Document, texts []string, st *runState) (string, error) {
	pt, hasPlain := doc.(document.PlainTexter)
	parts := make([]string, len(texts))
	for i, text := range texts {
		if err := st.checkpoint(ctx); err != nil {
			return "", err
		}
		parts[i] = text
		if !hasPlain {
			continue
		}
		plain, err := pt.PlainText(ctx, i+1)
		if err != nil {
			st.logger.Debug("plain text unavailable", "page", i+1, "error", err)
			continue
		}
		if strings.TrimSpace(plain) != "" {
			parts[i] = plain
		}
	}
	return strings.Join(parts, "\n"+parsefields.PageBreakMarker+"\n"), nil
}

func cells(items []document.TextItem) [][]parsefields.Cell {
	rows := document.SplitRows(items)
	out := make([][]parsefields.Cell, len(rows))
	for i, row := range rows {
		out[i] = make([]parsefields.Cell, len(row))
		for j, it := range row {
			out[i][j] = parsefields.Cell{Text: it.Str, X: it.X}
		}
	}
	return out
}

package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
)

// PageRenderer rasterizes one page of a PDF file at dpi.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error)
}

// PDFLoader opens PDFs with ledongthuc/pdf. Rasterization is delegated to
// Renderer, which needs the bytes on disk; they are spilled to TempDir on
// first use.
type PDFLoader struct {
	Renderer PageRenderer
	TempDir  string
	Logger   *slog.Logger
}

func NewPDFLoader(renderer PageRenderer, tempDir string, logger *slog.Logger) *PDFLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFLoader{Renderer: renderer, TempDir: tempDir, Logger: logger}
}

func (l *PDFLoader) Load(ctx context.Context, data []byte) (doc Document, err error) {
	if len(data) == 0 {
		return nil, common.DocumentLoadError(errors.New("document is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, common.DocumentLoadError(fmt.Errorf("pdf reader crashed: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if isPasswordError(err) {
			return nil, common.NewAppError(common.CodePasswordProtected, "document requires a password", common.ErrPasswordProtected)
		}
		return nil, common.DocumentLoadError(err)
	}
	l.Logger.Debug("pdf opened", "pages", reader.NumPage(), "bytes", len(data))
	return &pdfDocument{
		data:     data,
		reader:   reader,
		renderer: l.Renderer,
		tempDir:  l.TempDir,
		logger:   l.Logger,
	}, nil
}

func isPasswordError(err error) bool {
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

type pdfDocument struct {
	data     []byte
	reader   *pdf.Reader
	renderer PageRenderer
	tempDir  string
	logger   *slog.Logger

	spill    sync.Once
	path     string
	spillErr error
}

func (d *pdfDocument) NumPages() int { return d.reader.NumPage() }

func (d *pdfDocument) PageText(ctx context.Context, page int) (items []TextItem, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("page %d: text extraction crashed: %v", page, r)
		}
	}()

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d: not found", page)
	}
	rows, err := p.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	// PDF y grows upwards; read top row first
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })

	for _, row := range rows {
		n := len(row.Content)
		for i, word := range row.Content {
			items = append(items, TextItem{Str: word.S, X: word.X, EOL: i == n-1})
		}
	}
	return items, nil
}

func (d *pdfDocument) PlainText(ctx context.Context, page int) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: plain text extraction crashed: %v", page, r)
		}
	}()

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d: not found", page)
	}
	return p.GetPlainText(nil)
}

func (d *pdfDocument) RasterizePage(ctx context.Context, page int, scale float64) (image.Image, error) {
	if d.renderer == nil {
		return nil, errors.New("no page renderer configured")
	}
	d.spill.Do(func() {
		f, err := os.CreateTemp(d.tempDir, "statement-*.pdf")
		if err != nil {
			d.spillErr = fmt.Errorf("create temp pdf: %w", err)
			return
		}
		d.path = f.Name()
		if _, err := f.Write(d.data); err != nil {
			d.spillErr = fmt.Errorf("write temp pdf: %w", err)
		}
		if err := f.Close(); err != nil && d.spillErr == nil {
			d.spillErr = fmt.Errorf("close temp pdf: %w", err)
		}
	})
	if d.spillErr != nil {
		return nil, d.spillErr
	}
	dpi := int(math.Round(72 * scale))
	return d.renderer.RenderPage(ctx, d.path, page, dpi)
}

func (d *pdfDocument) Close() error {
	if d.path == "" {
		return nil
	}
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove temp pdf", "path", d.path, "error", err)
		return err
	}
	return nil
}

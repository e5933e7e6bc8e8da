package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Poppler renders PDF pages to PNG with pdftoppm.
type Poppler struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewPoppler(cfg Config, runner Runner, logger *slog.Logger) *Poppler {
	logger = defaultLogger(logger)
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &Poppler{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// RenderPage rasterizes a single page of the PDF at path.
func (p *Poppler) RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	tmpDir, err := os.MkdirTemp(p.cfg.TempDir, "stx-pp-*")
	if err != nil {
		return nil, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Warn("failed to remove temp dir", "path", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page)
	// pdftoppm -f N -l N -r DPI -png -singlefile <in.pdf> <tmp/page>
	_, _, err = p.runner.Run(ctx, p.cfg.Pdftoppm,
		"-f", n, "-l", n, "-r", strconv.Itoa(dpi), "-png", "-singlefile", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w", page, err)
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d produced no image: %w", page, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	p.logger.Debug("page rasterized", "page", page, "dpi", dpi, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

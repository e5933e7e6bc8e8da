// Package ocr turns page images into text: pdftoppm renders pages and a
// tesseract engine (exec or cgo) recognizes them.
package ocr

import (
	"context"
	"image"
	"log/slog"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TessdataDir string
	PSM         int // 6 suits statement tables (uniform block of text)
	OEM         int // 1 = LSTM; leave 0 to use default

	EnableTSVConfidence bool
	TempDir             string
}

// ConfigFrom maps application config onto the exec-based tools.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Pdftoppm:            c.PdftoppmPath,
		Tesseract:           c.TesseractPath,
		TessdataDir:         c.TessdataDir,
		PSM:                 c.PSM,
		EnableTSVConfidence: true,
		TempDir:             c.TempDir,
	}
}

func (c Config) withDefaults() Config {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	return c
}

// Engine recognizes page images for one language. Instances are not safe
// for concurrent use and must be closed.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// ConfidenceReporter is implemented by engines that can score their last
// recognition in 0..1.
type ConfidenceReporter interface {
	LastConfidence() float32
}

// EngineFactory creates a fresh engine for lang.
type EngineFactory interface {
	NewEngine(ctx context.Context, lang string) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(ctx context.Context, lang string) (Engine, error)

func (f EngineFactoryFunc) NewEngine(ctx context.Context, lang string) (Engine, error) {
	return f(ctx, lang)
}

func defaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

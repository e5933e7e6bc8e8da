package core

import (
	"log/slog"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/document"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
)

// NewLoader returns the PDF loader, rasterizing through pdftoppm.
func NewLoader(cfg common.OCRConfig, logger *slog.Logger) document.Loader {
	runner := ocr.ExecRunner{Logger: logger}
	return document.NewPDFLoader(ocr.NewPoppler(ocr.ConfigFrom(cfg), runner, logger), cfg.TempDir, logger)
}

package tesseract

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
)

// NewEngineFactory picks the recognizer named by cfg.Engine. scale is the
// pipeline's render scale, reported to tesseract as DPI.
func NewEngineFactory(cfg common.OCRConfig, scale float64, logger *slog.Logger) (ocr.EngineFactory, error) {
	switch cfg.Engine {
	case "", "gosseract":
		return NewFactory(Config{
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
			DPI:         int(math.Round(72 * scale)),
		}, logger), nil
	case "cli":
		return ocr.NewCLIFactory(ocr.ConfigFrom(cfg), ocr.ExecRunner{Logger: logger}, logger), nil
	}
	return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown OCR engine %q", cfg.Engine), common.ErrInvalidInput)
}

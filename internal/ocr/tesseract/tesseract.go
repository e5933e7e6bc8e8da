// Package tesseract backs ocr.Engine with the gosseract client.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
)

type Config struct {
	TessdataDir string
	PSM         int
	DPI         int // reported to tesseract as user_defined_dpi when set
}

// Factory creates one gosseract client per engine.
type Factory struct {
	cfg           Config
	logger        *slog.Logger
	clientFactory func() *gosseract.Client
}

func NewFactory(cfg Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{cfg: cfg, logger: logger, clientFactory: gosseract.NewClient}
}

func (f *Factory) NewEngine(_ context.Context, lang string) (ocr.Engine, error) {
	c := f.clientFactory()
	if f.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(f.cfg.TessdataDir); err != nil {
			c.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(lang); err != nil {
		c.Close()
		return nil, fmt.Errorf("set language %q: %w", lang, err)
	}
	if f.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(f.cfg.PSM)); err != nil {
			c.Close()
			return nil, fmt.Errorf("set psm: %w", err)
		}
	}
	if f.cfg.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(f.cfg.DPI)); err != nil {
			c.Close()
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	f.logger.Debug("tesseract client ready", "lang", lang, "version", gosseract.Version())
	return &engine{client: c}, nil
}

type engine struct {
	client *gosseract.Client
	conf   float32
}

func (e *engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if e.client == nil {
		return "", fmt.Errorf("engine closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	e.conf = meanWordConfidence(e.client)
	return text, nil
}

func (e *engine) LastConfidence() float32 { return e.conf }

func (e *engine) Close() error {
	if e.client == nil {
		return nil
	}
	c := e.client
	e.client = nil
	return c.Close()
}

func meanWordConfidence(c *gosseract.Client) float32 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return float32(sum / float64(len(boxes)) / 100.0)
}

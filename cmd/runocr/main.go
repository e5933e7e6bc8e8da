package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/core"
	"github.com/joseph-ayodele/statement-extractor/internal/document"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr/tesseract"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline"
)

func main() {
	var (
		lang     = flag.String("lang", "eng", "OCR language")
		engine   = flag.String("engine", "", "gosseract or cli (default from OCR_ENGINE)")
		maxPages = flag.Int("pages", 0, "pages to OCR (default PIPELINE_MAX_OCR_PAGES)")
		raw      = flag.Bool("raw", false, "print engine output without normalization")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-lang eng] [-engine cli] <statement.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *engine != "" {
		cfg.OCR.Engine = *engine
	}
	pcfg := pipeline.ConfigFrom(cfg.Pipeline, cfg.OCR)
	if *maxPages <= 0 {
		*maxPages = pcfg.MaxOCRPages
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.CallerTimeout)
	defer cancel()

	doc, err := core.NewLoader(cfg.OCR, logger).Load(ctx, data)
	if err != nil {
		logger.Error("load pdf", "error", common.UserMessage(err))
		os.Exit(1)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			logger.Error("close document", "error", cerr)
		}
	}()
	rz, ok := doc.(document.Rasterizer)
	if !ok {
		logger.Error("document cannot be rasterized")
		os.Exit(1)
	}

	factory, err := tesseract.NewEngineFactory(cfg.OCR, pcfg.OCRScale, logger)
	if err != nil {
		logger.Error("engine", "error", err)
		os.Exit(1)
	}
	eng, err := factory.NewEngine(ctx, *lang)
	if err != nil {
		logger.Error("start engine", "lang", *lang, "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	pages := min(doc.NumPages(), *maxPages)
	for page := 1; page <= pages; page++ {
		start := time.Now()
		img, err := rz.RasterizePage(ctx, page, pcfg.OCRScale)
		if err != nil {
			logger.Error("rasterize", "page", page, "error", err)
			continue
		}
		text, err := eng.Recognize(ctx, pcfg.Preprocess.Apply(img))
		if err != nil {
			logger.Error("recognize", "page", page, "error", err)
			continue
		}
		if !*raw {
			text = ocr.Normalize(text)
		}
		conf := float32(-1)
		if cr, ok := eng.(ocr.ConfidenceReporter); ok {
			conf = cr.LastConfidence()
		}
		logger.Info("page done", "page", page, "of", pages, "confidence", conf,
			"chars", len(text), "duration_ms", time.Since(start).Milliseconds())
		fmt.Printf("===== page %d =====\n%s\n", page, text)
	}
}

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
	"strings"
)

// CLIFactory builds engines that shell out to the tesseract binary.
type CLIFactory struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewCLIFactory(cfg Config, runner Runner, logger *slog.Logger) *CLIFactory {
	logger = defaultLogger(logger)
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &CLIFactory{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (f *CLIFactory) NewEngine(_ context.Context, lang string) (Engine, error) {
	if lang == "" {
		return nil, fmt.Errorf("ocr language is required")
	}
	dir, err := os.MkdirTemp(f.cfg.TempDir, "stx-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr workspace: %w", err)
	}
	return &cliEngine{cfg: f.cfg, runner: f.runner, logger: f.logger, lang: lang, dir: dir}, nil
}

type cliEngine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
	lang   string
	dir    string
	seq    int
	conf   float32
}

func (e *cliEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if e.dir == "" {
		return "", fmt.Errorf("engine closed")
	}
	e.seq++
	e.conf = 0
	in := filepath.Join(e.dir, fmt.Sprintf("img-%03d.png", e.seq))
	if err := writePNG(in, img); err != nil {
		return "", err
	}
	outBase := strings.TrimSuffix(in, ".png")

	// tesseract <img> <outbase> -l <lang> [--psm N] [--oem N] txt [tsv]
	args := []string{in, outBase, "-l", e.lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "txt")
	if e.cfg.EnableTSVConfidence {
		args = append(args, "tsv")
	}

	_, _, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	txt, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("tesseract output: %w", err)
	}
	if e.cfg.EnableTSVConfidence {
		if tsv, err := os.ReadFile(outBase + ".tsv"); err == nil {
			e.conf = MeanTSVConfidence(tsv)
		} else {
			e.logger.Debug("tsv output missing", "error", err)
		}
	}
	return string(txt), nil
}

func (e *cliEngine) LastConfidence() float32 { return e.conf }

func (e *cliEngine) Close() error {
	if e.dir == "" {
		return nil
	}
	dir := e.dir
	e.dir = ""
	return os.RemoveAll(dir)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

// MeanTSVConfidence averages the word confidences of tesseract TSV output
// into 0..1.
func MeanTSVConfidence(tsv []byte) float32 {
	lines := strings.Split(string(tsv), "\n")
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}

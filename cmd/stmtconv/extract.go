package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/core"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/export"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr/tesseract"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/statement-extractor/internal/repository"
	"github.com/joseph-ayodele/statement-extractor/internal/server"
)

var extractFlags struct {
	out     string
	format  string
	useOCR  bool
	lang    string
	quality string
	engine  string
	maxMB   float64
	quiet   bool
}

var extractCmd = &cobra.Command{
	Use:   "extract <statement.pdf>",
	Short: "Extract transactions from one statement PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		env, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer env.close()

		format, err := outputFormat(extractFlags.format, extractFlags.out)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		res, err := env.processor.ProcessDocument(ctx, core.Request{
			Source:  args[0],
			Data:    data,
			Options: extractOptions(),
			Handler: progressHandler(cmd.ErrOrStderr(), extractFlags.quiet),
		})
		if err != nil {
			return fmt.Errorf("%s: %s", filepath.Base(args[0]), common.UserMessage(err))
		}
		env.logger.Info("extracted", "source", args[0], "backend", res.Backend, "records", len(res.Records))
		return writeOutput(cmd.OutOrStdout(), extractFlags.out, format, res.Records, env.logger)
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVarP(&extractFlags.out, "output", "o", "", "output file; stdout when empty")
	f.StringVar(&extractFlags.format, "format", "", "xlsx, csv or json; inferred from --output, csv otherwise")
	f.BoolVar(&extractFlags.useOCR, "ocr", false, "run OCR when the PDF has no usable text layer")
	f.StringVar(&extractFlags.lang, "lang", "eng", "OCR language")
	f.StringVar(&extractFlags.quality, "quality", "", fmt.Sprintf("OCR quality hint: %s or %s", constants.OCRQualityFast, constants.OCRQualityBest))
	f.StringVar(&extractFlags.engine, "engine", "", "OCR engine: gosseract or cli (default from OCR_ENGINE)")
	f.Float64Var(&extractFlags.maxMB, "max-size-mb", 0, "reject larger documents (default from PIPELINE_MAX_SIZE_MB)")
	f.BoolVarP(&extractFlags.quiet, "quiet", "q", false, "no progress on stderr")
}

func extractOptions() pipeline.Options {
	return pipeline.Options{
		UseOCR:    extractFlags.useOCR,
		Language:  extractFlags.lang,
		Quality:   constants.OCRQuality(extractFlags.quality),
		MaxSizeMB: extractFlags.maxMB,
	}
}

// env is the wiring shared by the subcommands.
type env struct {
	cfg       *common.Config
	logger    *slog.Logger
	processor *core.Processor
	db        *repo.DB
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if extractFlags.engine != "" {
		cfg.OCR.Engine = extractFlags.engine
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pcfg := pipeline.ConfigFrom(cfg.Pipeline, cfg.OCR)
	engines, err := tesseract.NewEngineFactory(cfg.OCR, pcfg.OCRScale, logger)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}
	opts := []core.ProcessorOption{
		core.WithCallerTimeout(cfg.Pipeline.CallerTimeout),
		core.WithMaxSizeMB(cfg.Pipeline.MaxSizeMB),
	}
	if ledger != "" {
		dbCfg := cfg.Database
		dbCfg.DSN = ledger
		db, err := server.ConnectDB(ctx, dbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		e.db = db
		opts = append(opts, core.WithLedger(repo.NewExtractJobRepository(db, logger)))
	}
	e.processor = core.NewProcessor(logger, pcfg, core.NewLoader(cfg.OCR, logger), engines, opts...)
	return e, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
}

// outputFormat prefers --format, then the output extension, then csv.
func outputFormat(flag, out string) (string, error) {
	format := constants.NormalizeExt(flag)
	if format == "" && out != "" {
		format = constants.NormalizeExt(filepath.Ext(out))
	}
	if format == "" {
		format = constants.FormatCSV
	}
	if !constants.IsOutputFormat(format) {
		return "", fmt.Errorf("unsupported output format %q (want one of %s)", format, strings.Join(constants.OutputFormats, ", "))
	}
	return format, nil
}

func writeOutput(stdout io.Writer, path, format string, records []entity.Record, logger *slog.Logger) error {
	w := export.NewWriter(logger)
	if path == "" {
		return w.Write(stdout, format, records)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := w.Write(f, format, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// progressHandler redraws a single status line on stderr.
func progressHandler(w io.Writer, quiet bool) pipeline.Handler {
	if quiet {
		return pipeline.Handler{}
	}
	return pipeline.Handler{
		OnProgress: func(pct int, status string) {
			fmt.Fprintf(w, "\r\033[K[%3d%%] %s", pct, status)
			if pct == 100 {
				fmt.Fprintln(w)
			}
		},
		OnError: func(string) {
			fmt.Fprintln(w)
		},
	}
}

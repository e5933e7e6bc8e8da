package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/core"
	"github.com/joseph-ayodele/statement-extractor/internal/ingest"
)

var batchFlags struct {
	outDir     string
	format     string
	jobs       int
	skipHidden bool
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Convert every PDF and CSV statement under a directory",
	Long: `batch walks <dir>, extracts each statement and writes <name>.<format>
next to it (or under --out-dir). Extraction flags of the extract command apply.
A failed file is reported and does not stop the others.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		format, err := outputFormat(batchFlags.format, "")
		if err != nil {
			return err
		}
		if batchFlags.outDir != "" {
			if err := os.MkdirAll(batchFlags.outDir, 0o755); err != nil {
				return err
			}
		}
		env, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer env.close()

		files, stats, err := ingest.ScanDirectory(ctx, args[0], []string{constants.FormatPDF, constants.FormatCSV}, batchFlags.skipHidden)
		if err != nil {
			return err
		}
		env.logger.Info("scan complete", "root", args[0], "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

		start := time.Now()
		var ok, failed atomic.Int32
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, batchFlags.jobs))
		for _, fr := range files {
			if fr.Err != nil {
				failed.Add(1)
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", fr.Path, fr.Err)
				continue
			}
			g.Go(func() error {
				n, err := convertOne(gctx, env, fr, format)
				if err != nil {
					failed.Add(1)
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %s\n", fr.Path, common.UserMessage(err))
					return nil
				}
				ok.Add(1)
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d records)\n", fr.Path, n)
				return nil
			})
		}
		_ = g.Wait()

		fmt.Fprintf(cmd.OutOrStdout(), "%d converted, %d failed in %s\n", ok.Load(), failed.Load(), time.Since(start).Round(time.Millisecond))
		if failed.Load() > 0 {
			return fmt.Errorf("%d file(s) failed", failed.Load())
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.outDir, "out-dir", "", "write outputs here instead of next to each input")
	f.StringVar(&batchFlags.format, "format", constants.FormatXLSX, "xlsx, csv or json")
	f.IntVarP(&batchFlags.jobs, "jobs", "j", 2, "documents converted concurrently")
	f.BoolVar(&batchFlags.skipHidden, "skip-hidden", true, "ignore dotfiles and dot-directories")
	f.BoolVar(&extractFlags.useOCR, "ocr", false, "run OCR when a PDF has no usable text layer")
	f.StringVar(&extractFlags.lang, "lang", "eng", "OCR language")
	f.StringVar(&extractFlags.engine, "engine", "", "OCR engine: gosseract or cli (default from OCR_ENGINE)")
}

func convertOne(ctx context.Context, env *env, fr ingest.FileResult, format string) (int, error) {
	data, err := os.ReadFile(fr.Path)
	if err != nil {
		return 0, err
	}
	var res core.Result
	if fr.Ext == constants.FormatCSV {
		res, err = env.processor.ProcessManual(ctx, fr.Path, data)
	} else {
		res, err = env.processor.ProcessDocument(ctx, core.Request{Source: fr.Path, Data: data, Options: extractOptions()})
	}
	if err != nil {
		return 0, err
	}

	out := outputPath(fr.Path, batchFlags.outDir, format)
	if err := writeOutput(nil, out, format, res.Records, env.logger); err != nil {
		return 0, fmt.Errorf("write %s: %w", out, err)
	}
	return len(res.Records), nil
}

func outputPath(in, outDir, format string) string {
	dir := filepath.Dir(in)
	if outDir != "" {
		dir = outDir
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(dir, base+"."+format)
}

// Command statementd serves statement extraction over gRPC, with a job
// queue, a ledger, Prometheus metrics and an optional watched inbox.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/async"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/core"
	"github.com/joseph-ayodele/statement-extractor/internal/ingest"
	"github.com/joseph-ayodele/statement-extractor/internal/metrics"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr/tesseract"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/statement-extractor/internal/repository"
	"github.com/joseph-ayodele/statement-extractor/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("statementd stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("statementd stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("ledger ready", "dialect", db.Dialect)
	jobs := repo.NewExtractJobRepository(db, logger)

	m := metrics.New(prometheus.DefaultRegisterer)
	pcfg := pipeline.ConfigFrom(cfg.Pipeline, cfg.OCR)
	engines, err := tesseract.NewEngineFactory(cfg.OCR, pcfg.OCRScale, logger)
	if err != nil {
		return err
	}
	proc := core.NewProcessor(logger, pcfg, core.NewLoader(cfg.OCR, logger), engines,
		core.WithLedger(jobs),
		core.WithMetrics(m),
		core.WithCallerTimeout(cfg.Pipeline.CallerTimeout),
		core.WithMaxSizeMB(cfg.Pipeline.MaxSizeMB),
	)
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Server.Workers),
		async.WithQueueSize(cfg.Server.QueueSize),
	)

	svc := server.NewStatementService(proc, queue, jobs, logger)
	grpcServer, hs := server.NewGRPCServer(svc, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC serving", "addr", lis.Addr().String())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("metrics serving", "addr", cfg.Server.MetricsAddr)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Server.WatchDir != "" {
		g.Go(func() error {
			return watchInbox(gctx, cfg.Server, proc, queue, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		hs.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		queue.Shutdown(shutdownCtx)
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// watchInbox queues PDFs dropped into the watched directory and parses CSVs
// inline.
func watchInbox(ctx context.Context, cfg common.ServerConfig, proc *core.Processor, queue async.Queue, logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.WatchDir},
		AllowedExts: []string{constants.FormatPDF, constants.FormatCSV},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watching inbox", "dir", cfg.WatchDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", "error", err)
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("read inbox file", "path", path, "error", err)
				continue
			}
			if constants.NormalizeExt(filepath.Ext(path)) == constants.FormatCSV {
				res, err := proc.ProcessManual(ctx, path, data)
				logger.Info("inbox csv parsed", "path", path, "job_id", res.JobID, "records", len(res.Records), "error", err)
				continue
			}
			id, err := queue.Submit(ctx, async.Job{
				Source:      path,
				Data:        data,
				Options:     pipeline.Options{UseOCR: cfg.WatchOCR},
				SubmittedAt: time.Now(),
			})
			if err != nil {
				logger.Warn("queue inbox file", "path", path, "error", err)
				continue
			}
			logger.Info("inbox file queued", "path", path, "job_id", id)
		}
	}
}

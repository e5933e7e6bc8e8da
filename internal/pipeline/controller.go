// Package pipeline drives one statement document from raw bytes to ordered
// transaction records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/document"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/metrics"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline/parsefields"
	"github.com/joseph-ayodele/statement-extractor/internal/postprocess"
)

const tracerName = "github.com/joseph-ayodele/statement-extractor/internal/pipeline"

// ErrControllerUsed is returned when Run is called twice on one Controller.
var ErrControllerUsed = errors.New("controller already ran")

// Config holds limits and timers. Zero values get defaults in NewController.
type Config struct {
	ScannedThreshold int     // default 100; negative disables classification (always text layer)
	MaxTextPages     int     // default 20
	MaxOCRPages      int     // default 10
	OCRScale         float64 // default 1.5
	ProgressInterval time.Duration
	StageTimeout     time.Duration // stall timeout, reset on progress; default 2m
	Preprocess       ocr.Preprocess
	DefaultLanguage  string
}

// ConfigFrom maps application config onto pipeline config.
func ConfigFrom(c common.PipelineConfig, o common.OCRConfig) Config {
	return Config{
		ScannedThreshold: c.ScannedThreshold,
		MaxTextPages:     c.MaxTextPages,
		MaxOCRPages:      c.MaxOCRPages,
		OCRScale:         c.OCRScale,
		ProgressInterval: c.ProgressInterval,
		StageTimeout:     c.StageTimeout,
		Preprocess:       ocr.Preprocess{Threshold: uint8(o.BinarizeThreshold)},
	}
}

// Options are supplied by the caller for each document.
type Options struct {
	UseOCR    bool
	Language  string
	Quality   constants.OCRQuality // informational
	MaxSizeMB float64              // enforced by the caller before Run
}

// Handler receives Run's callbacks. Any of them may be nil.
type Handler struct {
	OnProgress func(percent int, status string)
	OnData     func(records []entity.Record)
	OnError    func(message string)
}

type ControllerOption func(*Controller)

func WithMetrics(rec metrics.Recorder) ControllerOption {
	return func(c *Controller) {
		if rec != nil {
			c.metrics = rec
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) ControllerOption {
	return func(c *Controller) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock replaces the clock used for progress throttling.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller runs a single document through classification, extraction and
// post-processing. It is not reusable.
type Controller struct {
	cfg     Config
	loader  document.Loader
	text    *textLayerStage
	ocr     *ocrStage
	logger  *slog.Logger
	metrics metrics.Recorder
	tracer  trace.Tracer
	now     func() time.Time

	id        uuid.UUID
	cancelled atomic.Bool

	mu      sync.Mutex
	state   State
	backend constants.Backend
	used    bool
}

func NewController(cfg Config, loader document.Loader, engines ocr.EngineFactory, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ScannedThreshold == 0 {
		cfg.ScannedThreshold = document.DefaultScannedThreshold
	}
	if cfg.MaxTextPages <= 0 {
		cfg.MaxTextPages = 20
	}
	if cfg.MaxOCRPages <= 0 {
		cfg.MaxOCRPages = 10
	}
	if cfg.OCRScale <= 0 {
		cfg.OCRScale = 1.5
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 100 * time.Millisecond
	}
	if cfg.StageTimeout == 0 {
		cfg.StageTimeout = 2 * time.Minute
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = constants.DefaultOCRLanguage
	}

	parser := parsefields.NewParser(logger)
	c := &Controller{
		cfg:     cfg,
		loader:  loader,
		text:    &textLayerStage{maxPages: cfg.MaxTextPages, parser: parser},
		ocr:     &ocrStage{maxPages: cfg.MaxOCRPages, scale: cfg.OCRScale, preprocess: cfg.Preprocess, engines: engines, parser: parser},
		logger:  logger,
		metrics: (*metrics.Metrics)(nil),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		id:      uuid.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) ID() uuid.UUID { return c.id }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Backend reports which extraction path the run took, once it has chosen one.
func (c *Controller) Backend() constants.Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("pipeline state", "run_id", c.id, "from", prev.String(), "to", s.String())
}

// Cancel asks the running extraction to stop at its next checkpoint. Calls
// already in flight are not interrupted.
func (c *Controller) Cancel() {
	c.cancelled.Store(true)
}

// Run extracts records from data. Exactly one of OnData or OnError fires,
// unless the run is cancelled, in which case neither does. The returned
// values mirror the callbacks.
func (c *Controller) Run(ctx context.Context, data []byte, opts Options, h Handler) ([]entity.Record, error) {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return nil, ErrControllerUsed
	}
	c.used = true
	c.mu.Unlock()

	start := c.now()
	logger := common.LoggerFromContext(ctx, c.logger).With("run_id", c.id)
	ctx, span := c.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run_id", c.id.String()),
		attribute.Int("bytes", len(data)),
		attribute.Bool("use_ocr", opts.UseOCR),
	))
	defer span.End()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	wd := NewWatchdog(c.cfg.StageTimeout, func() {
		logger.Warn("extraction stalled, aborting", "timeout", c.cfg.StageTimeout)
		cancel(common.ErrTimeout)
	})
	defer wd.Stop()

	st := &runState{
		cancelled: &c.cancelled,
		logger:    logger,
		metrics:   c.metrics,
	}
	st.progress = newProgressReporter(c.cfg.ProgressInterval, c.now, h.OnProgress, c.cancelled.Load, wd.Kick)

	records, err := c.execute(runCtx, data, opts, st)
	c.mu.Lock()
	c.backend = st.backend
	c.mu.Unlock()
	if c.cancelled.Load() {
		err = common.ErrCancelled
	} else if err != nil && !isTerminal(err) && runCtx.Err() != nil {
		err = contextError(runCtx)
	}

	if err == nil {
		// The final progress callback may itself cancel the run.
		st.report(100, fmt.Sprintf("Extracted %d transactions", len(records)))
	}
	if c.cancelled.Load() {
		err = common.ErrCancelled
	}

	outcome := "completed"
	switch {
	case err == nil:
		c.setState(StateCompleted)
		logger.Info("extraction completed", "backend", st.backend, "records", len(records), "duration_ms", c.now().Sub(start).Milliseconds())
		if h.OnData != nil && !c.cancelled.Load() {
			h.OnData(records)
		}
	case errors.Is(err, common.ErrCancelled):
		outcome = "cancelled"
		c.setState(StateCancelled)
		logger.Info("extraction cancelled", "backend", st.backend)
		span.SetStatus(codes.Unset, "cancelled")
	default:
		outcome = "failed"
		if errors.Is(err, common.ErrTimeout) {
			outcome = "timeout"
		}
		c.setState(StateFailed)
		logger.Error("extraction failed", "backend", st.backend, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, common.ErrorCode(err))
		if h.OnError != nil && !c.cancelled.Load() {
			h.OnError(common.UserMessage(err))
		}
	}
	span.SetAttributes(attribute.String("backend", string(st.backend)), attribute.String("outcome", outcome))
	c.metrics.ObserveRun(string(st.backend), outcome, c.now().Sub(start), len(records))

	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Controller) execute(ctx context.Context, data []byte, opts Options, st *runState) ([]entity.Record, error) {
	c.setState(StateClassifying)
	st.report(0, "Loading document")

	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	lang := opts.Language
	if lang == "" {
		lang = c.cfg.DefaultLanguage
	}
	if opts.Quality != "" {
		st.logger.Debug("ocr quality requested", "quality", opts.Quality)
	}

	doc, err := c.loader.Load(ctx, data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := doc.Close(); err != nil {
			st.logger.Warn("document close failed", "error", err)
		}
	}()
	if err := st.checkpoint(ctx); err != nil {
		return nil, err
	}
	st.report(5, "Analyzing document")

	kind := c.classify(ctx, doc)
	st.logger.Info("document classified", "kind", kind.String(), "pages", doc.NumPages())
	st.report(10, fmt.Sprintf("Detected %s document", kind))
	if err := st.checkpoint(ctx); err != nil {
		return nil, err
	}

	var recs []entity.Record
	if kind == document.KindScanned && opts.UseOCR {
		c.setState(StateExtractingOCR)
		st.backend = constants.BackendOCR
		sctx, span := c.tracer.Start(ctx, "pipeline.extract_ocr", trace.WithAttributes(attribute.String("lang", lang)))
		recs, err = c.ocr.extract(sctx, doc, lang, st)
		endSpan(span, err)
	} else {
		c.setState(StateExtractingText)
		st.backend = constants.BackendTextLayer
		sctx, span := c.tracer.Start(ctx, "pipeline.extract_text")
		recs, err = c.text.extract(sctx, doc, st)
		endSpan(span, err)
	}
	if err != nil {
		return nil, err
	}

	c.setState(StatePostProcessing)
	out := postprocess.Process(recs)
	st.logger.Debug("records post-processed", "raw", len(recs), "kept", len(out))
	if err := st.checkpoint(ctx); err != nil {
		return nil, err
	}
	st.report(parseBandEnd, "Finalizing results")
	return out, nil
}

func (c *Controller) classify(ctx context.Context, doc document.Document) document.Kind {
	if c.cfg.ScannedThreshold < 0 {
		return document.KindTextLayer
	}
	ctx, span := c.tracer.Start(ctx, "pipeline.classify")
	defer span.End()
	kind := document.ClassifyDocument(ctx, doc, c.cfg.ScannedThreshold)
	span.SetAttributes(attribute.String("kind", kind.String()))
	return kind
}

func validateOptions(opts Options) error {
	v := common.NewValidator().
		Field("language", opts.Language, common.OCRLanguage).
		Field("quality", string(opts.Quality), common.OCRQuality).
		Field("max_size_mb", opts.MaxSizeMB, common.NonNegative)
	return v.Error()
}

func isTerminal(err error) bool {
	return errors.Is(err, common.ErrCancelled) ||
		errors.Is(err, common.ErrTimeout) ||
		errors.Is(err, common.ErrExtractionEmpty) ||
		errors.Is(err, common.ErrPasswordProtected) ||
		errors.Is(err, common.ErrDocumentLoad)
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, common.ErrCancelled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

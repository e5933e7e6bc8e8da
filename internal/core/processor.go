// Package core wires the extraction pipeline to the ledger for one document
// at a time.
package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/document"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/manual"
	"github.com/joseph-ayodele/statement-extractor/internal/metrics"
	"github.com/joseph-ayodele/statement-extractor/internal/ocr"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline"
	"github.com/joseph-ayodele/statement-extractor/internal/repository"
)

// Request describes one document to extract.
type Request struct {
	JobID   uuid.UUID // ledger row created by Register; zero creates one
	Source  string
	Data    []byte
	Options pipeline.Options
	Handler pipeline.Handler
}

// Result is the outcome recorded in the ledger.
type Result struct {
	JobID   uuid.UUID
	Status  constants.JobStatus
	Backend constants.Backend
	Records []entity.Record
}

// Processor runs a fresh pipeline controller per document under the
// caller-side stall timeout and records the outcome.
type Processor struct {
	logger        *slog.Logger
	pipelineCfg   pipeline.Config
	callerTimeout time.Duration
	maxSizeMB     float64
	loader        document.Loader
	engines       ocr.EngineFactory
	jobs          repository.ExtractJobRepository
	manual        *manual.Parser
	metrics       metrics.Recorder
	tracer        trace.TracerProvider
}

type ProcessorOption func(*Processor)

// WithLedger records every run in jobs.
func WithLedger(jobs repository.ExtractJobRepository) ProcessorOption {
	return func(p *Processor) { p.jobs = jobs }
}

func WithMetrics(rec metrics.Recorder) ProcessorOption {
	return func(p *Processor) { p.metrics = rec }
}

func WithTracerProvider(tp trace.TracerProvider) ProcessorOption {
	return func(p *Processor) { p.tracer = tp }
}

// WithCallerTimeout sets the outer stall timeout; zero keeps the 3 minute default.
func WithCallerTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d != 0 {
			p.callerTimeout = d
		}
	}
}

// WithMaxSizeMB rejects larger documents before they are opened.
func WithMaxSizeMB(mb float64) ProcessorOption {
	return func(p *Processor) { p.maxSizeMB = mb }
}

func NewProcessor(logger *slog.Logger, cfg pipeline.Config, loader document.Loader, engines ocr.EngineFactory, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:        logger,
		pipelineCfg:   cfg,
		callerTimeout: 3 * time.Minute,
		loader:        loader,
		engines:       engines,
		manual:        manual.NewParser(logger),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Register creates a QUEUED ledger row for data. Without a ledger it only
// allocates an id.
func (p *Processor) Register(ctx context.Context, source string, data []byte, lang string) (uuid.UUID, error) {
	if p.jobs == nil {
		return uuid.New(), nil
	}
	sum := sha256.Sum256(data)
	job := &entity.ExtractJob{
		Source:      source,
		ContentHash: hex.EncodeToString(sum[:]),
		SizeBytes:   int64(len(data)),
		Language:    lang,
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// ProcessDocument extracts records from req.Data. The returned error is the
// pipeline's terminal error; ledger failures are logged, not returned.
func (p *Processor) ProcessDocument(ctx context.Context, req Request) (Result, error) {
	res := Result{JobID: req.JobID}
	if res.JobID == uuid.Nil {
		id, err := p.Register(ctx, req.Source, req.Data, req.Options.Language)
		if err != nil {
			return res, err
		}
		res.JobID = id
	}
	logger := p.logger.With("job_id", res.JobID, "source", req.Source)
	ctx = common.WithJobID(ctx, res.JobID.String())

	maxMB := req.Options.MaxSizeMB
	if maxMB == 0 {
		maxMB = p.maxSizeMB
	}
	if err := common.CheckDocumentSize(len(req.Data), maxMB); err != nil {
		p.finish(ctx, res.JobID, constants.BackendNone, nil, err)
		res.Status = constants.JobStatusFailed
		return res, err
	}
	p.start(ctx, res.JobID)

	ctrl := pipeline.NewController(p.pipelineCfg, p.loader, p.engines, p.logger.With("source", req.Source),
		pipeline.WithMetrics(p.metrics), pipeline.WithTracerProvider(p.tracer))

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	wd := pipeline.NewWatchdog(p.callerTimeout, func() {
		logger.Warn("no progress from extraction, giving up", "timeout", p.callerTimeout)
		cancel(common.ErrTimeout)
	})
	defer wd.Stop()

	h := req.Handler
	onProgress := h.OnProgress
	h.OnProgress = func(pct int, status string) {
		wd.Kick()
		if onProgress != nil {
			onProgress(pct, status)
		}
	}

	logger.Info("extraction started", "bytes", len(req.Data), "use_ocr", req.Options.UseOCR)
	records, err := ctrl.Run(runCtx, req.Data, req.Options, h)
	res.Backend = ctrl.Backend()
	res.Records = records
	res.Status = statusFor(err)
	p.finish(ctx, res.JobID, res.Backend, records, err)
	return res, err
}

// ProcessManual parses CSV transactions through the header-mapped path.
func (p *Processor) ProcessManual(ctx context.Context, source string, data []byte) (Result, error) {
	id, err := p.Register(ctx, source, data, "")
	if err != nil {
		return Result{}, err
	}
	p.start(ctx, id)
	records, err := p.manual.Parse(bytes.NewReader(data))
	res := Result{JobID: id, Backend: constants.BackendManual, Records: records, Status: statusFor(err)}
	p.finish(ctx, id, constants.BackendManual, records, err)
	return res, err
}

// Abandon closes the ledger row of a registered job that will never run.
func (p *Processor) Abandon(ctx context.Context, id uuid.UUID, cause error) {
	p.logger.Warn("job abandoned before extraction", "job_id", id, "error", cause)
	p.finish(ctx, id, constants.BackendNone, nil, cause)
}

func statusFor(err error) constants.JobStatus {
	switch {
	case err == nil:
		return constants.JobStatusCompleted
	case errors.Is(err, common.ErrTimeout):
		return constants.JobStatusTimeout
	case errors.Is(err, common.ErrCancelled):
		return constants.JobStatusCancelled
	}
	return constants.JobStatusFailed
}

func (p *Processor) start(ctx context.Context, id uuid.UUID) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.Start(ctx, id); err != nil {
		p.logger.Error("ledger start failed", "job_id", id, "error", err)
	}
}

// finish writes the terminal row even when ctx is already done.
func (p *Processor) finish(ctx context.Context, id uuid.UUID, backend constants.Backend, records []entity.Record, runErr error) {
	if p.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var err error
	if runErr == nil {
		err = p.jobs.FinishSuccess(ctx, id, backend, records)
	} else {
		err = p.jobs.FinishFailure(ctx, id, statusFor(runErr), backend, common.UserMessage(runErr))
	}
	if err != nil {
		p.logger.Error("ledger finish failed", "job_id", id, "error", fmt.Errorf("record outcome: %w", err))
	}
}

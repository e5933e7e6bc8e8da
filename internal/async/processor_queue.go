package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/core"
)

// ErrQueueClosed is returned by Submit after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// DocumentProcessor is the part of core.Processor the queue drives.
type DocumentProcessor interface {
	Register(ctx context.Context, source string, data []byte, lang string) (uuid.UUID, error)
	ProcessDocument(ctx context.Context, req core.Request) (core.Result, error)
	Abandon(ctx context.Context, id uuid.UUID, cause error)
}

type ProcessorQueue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// sendMu is held shared while sending so Shutdown never closes ch under a sender
	sendMu sync.RWMutex
	closed bool

	mu       sync.Mutex
	inflight map[uuid.UUID]context.CancelCauseFunc
	queued   map[uuid.UUID]bool // true once cancelled before a worker got it
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func NewProcessorQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:     proc,
		logger:   logger,
		workers:  2,
		ch:       make(chan Job, 64),
		inflight: make(map[uuid.UUID]context.CancelCauseFunc),
		queued:   make(map[uuid.UUID]bool),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	q.mu.Lock()
	if q.queued[job.ID] {
		cancel(common.ErrCancelled)
	}
	delete(q.queued, job.ID)
	q.inflight[job.ID] = cancel
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.inflight, job.ID)
		q.mu.Unlock()
	}()

	res, err := q.proc.ProcessDocument(ctx, core.Request{
		JobID:   job.ID,
		Source:  job.Source,
		Data:    job.Data,
		Options: job.Options,
	})
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.ID, "status", res.Status, "error", err)
		return
	}
	q.logger.Info("processed document successfully", "worker_id", workerID, "job_id", job.ID,
		"records", len(res.Records), "backend", res.Backend, "waited_ms", time.Since(job.SubmittedAt).Milliseconds())
}

// Submit registers the job in the ledger and hands it to a worker. It blocks
// while the queue is full.
func (q *ProcessorQueue) Submit(ctx context.Context, job Job) (uuid.UUID, error) {
	q.sendMu.RLock()
	closed := q.closed
	q.sendMu.RUnlock()
	if closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "source", job.Source)
		return uuid.Nil, ErrQueueClosed
	}

	id, err := q.proc.Register(ctx, job.Source, job.Data, job.Options.Language)
	if err != nil {
		return uuid.Nil, err
	}
	job.ID = id
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		q.proc.Abandon(ctx, id, common.ErrCancelled)
		return uuid.Nil, ErrQueueClosed
	}
	q.mu.Lock()
	q.queued[id] = false
	q.mu.Unlock()
	select {
	case q.ch <- job:
		q.logger.Info("queued document for extraction", "job_id", id, "source", job.Source)
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", id)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.queued, id)
			q.mu.Unlock()
			q.proc.Abandon(ctx, id, common.ErrCancelled)
			return uuid.Nil, ctx.Err()
		}
	}
	return id, nil
}

// Cancel stops a queued or running job. It reports false for ids the queue
// does not know about.
func (q *ProcessorQueue) Cancel(jobID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cancel, ok := q.inflight[jobID]; ok {
		cancel(common.ErrCancelled)
		q.logger.Info("cancel requested", "job_id", jobID)
		return true
	}
	if _, ok := q.queued[jobID]; ok {
		q.queued[jobID] = true
		q.logger.Info("queued job cancelled", "job_id", jobID)
		return true
	}
	return false
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.sendMu.Lock()
	if q.closed {
		q.sendMu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context, cancelling running jobs")
		q.mu.Lock()
		for _, cancel := range q.inflight {
			cancel(common.ErrCancelled)
		}
		q.mu.Unlock()
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

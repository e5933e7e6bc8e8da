package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

type ExtractJobRepository interface {
	Create(ctx context.Context, job *entity.ExtractJob) error
	Start(ctx context.Context, jobID uuid.UUID) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, backend constants.Backend, records []entity.Record) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, backend constants.Backend, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

const jobColumns = `id, source, content_hash, size_bytes, status, backend, language,
	record_count, records, error_message, created_at, started_at, finished_at`

func (r *extractJobRepo) Create(ctx context.Context, job *entity.ExtractJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusQueued
	}
	job.CreatedAt = r.now()
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`INSERT INTO extract_jobs
		(id, source, content_hash, size_bytes, status, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		job.ID.String(), job.Source, job.ContentHash, job.SizeBytes, string(job.Status), job.Language, job.CreatedAt)
	if err != nil {
		r.log.Error("extract_job create failed", "source", job.Source, "err", err)
		return fmt.Errorf("%w: create extract job: %v", common.ErrDatabase, err)
	}
	r.log.Info("extract_job created", "job_id", job.ID, "source", job.Source)
	return nil
}

func (r *extractJobRepo) Start(ctx context.Context, jobID uuid.UUID) error {
	return r.update(ctx, jobID, `UPDATE extract_jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(constants.JobStatusRunning), r.now(), jobID.String())
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, backend constants.Backend, records []entity.Record) error {
	if records == nil {
		records = []entity.Record{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	err = r.update(ctx, jobID, `UPDATE extract_jobs
		SET status = ?, backend = ?, record_count = ?, records = ?, finished_at = ?
		WHERE id = ?`,
		string(constants.JobStatusCompleted), string(backend), len(records), string(payload), r.now(), jobID.String())
	if err != nil {
		return err
	}
	r.log.Info("extract_job finished", "job_id", jobID, "status", constants.JobStatusCompleted, "records", len(records))
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, backend constants.Backend, message string) error {
	if !status.Terminal() || status == constants.JobStatusCompleted {
		return fmt.Errorf("%w: %s is not a failure status", common.ErrInvalidInput, status)
	}
	err := r.update(ctx, jobID, `UPDATE extract_jobs
		SET status = ?, backend = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		string(status), string(backend), message, r.now(), jobID.String())
	if err != nil {
		return err
	}
	r.log.Warn("extract_job finished", "job_id", jobID, "status", status, "error", message)
	return nil
}

func (r *extractJobRepo) update(ctx context.Context, jobID uuid.UUID, query string, args ...any) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		r.log.Error("extract_job update failed", "job_id", jobID, "err", err)
		return fmt.Errorf("%w: update extract job: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: extract job %s", common.ErrNotFound, jobID)
	}
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT `+jobColumns+` FROM extract_jobs WHERE id = ?`), jobID.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: extract job %s", common.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get extract job: %v", common.ErrDatabase, err)
	}
	return job, nil
}

func (r *extractJobRepo) ListRecent(ctx context.Context, limit int) ([]*entity.ExtractJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(`SELECT `+jobColumns+`
		FROM extract_jobs ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list extract jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.ExtractJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan extract job: %v", common.ErrDatabase, err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.ExtractJob, error) {
	var (
		job                 entity.ExtractJob
		id, status, backend string
		records, errMsg     sql.NullString
		started, finished   sql.NullTime
	)
	if err := s.Scan(&id, &job.Source, &job.ContentHash, &job.SizeBytes, &status, &backend, &job.Language,
		&job.RecordCount, &records, &errMsg, &job.CreatedAt, &started, &finished); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad job id %q: %w", id, err)
	}
	job.ID = parsed
	job.Status = constants.JobStatus(status)
	job.Backend = constants.Backend(backend)
	if records.Valid && records.String != "" {
		job.Records = json.RawMessage(records.String)
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	if started.Valid {
		job.StartedAt = &started.Time
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	return &job, nil
}

package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/async"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/core"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
	"github.com/joseph-ayodele/statement-extractor/internal/export"
	"github.com/joseph-ayodele/statement-extractor/internal/pipeline"
	"github.com/joseph-ayodele/statement-extractor/internal/repository"
)

// Processor is the synchronous side of core.Processor.
type Processor interface {
	ProcessDocument(ctx context.Context, req core.Request) (core.Result, error)
	ProcessManual(ctx context.Context, source string, data []byte) (core.Result, error)
}

type StatementService struct {
	processor Processor
	queue     async.Queue
	jobs      repository.ExtractJobRepository
	exporter  *export.Writer
	logger    *slog.Logger
}

// NewStatementService wires the handlers. queue and jobs may be nil, in which
// case Submit, GetJob and CancelJob report Unavailable.
func NewStatementService(proc Processor, queue async.Queue, jobs repository.ExtractJobRepository, logger *slog.Logger) *StatementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementService{processor: proc, queue: queue, jobs: jobs, exporter: export.NewWriter(logger), logger: logger}
}

type extractRequest struct {
	source string
	data   []byte
	opts   pipeline.Options
	format string
}

func parseExtractRequest(req *structpb.Struct) (extractRequest, error) {
	f := req.GetFields()
	out := extractRequest{
		source: strings.TrimSpace(f["source"].GetStringValue()),
		format: constants.NormalizeExt(f["format"].GetStringValue()),
		opts: pipeline.Options{
			UseOCR:    f["use_ocr"].GetBoolValue(),
			Language:  strings.TrimSpace(f["language"].GetStringValue()),
			Quality:   constants.OCRQuality(f["quality"].GetStringValue()),
			MaxSizeMB: f["max_size_mb"].GetNumberValue(),
		},
	}
	doc := f["document"].GetStringValue()
	if doc == "" {
		return out, status.Error(codes.InvalidArgument, "document is required")
	}
	data, err := base64.StdEncoding.DecodeString(doc)
	if err != nil {
		return out, status.Error(codes.InvalidArgument, "document must be base64")
	}
	out.data = data
	if out.source == "" {
		out.source = "upload"
	}
	if out.format != "" && !constants.IsOutputFormat(out.format) {
		return out, status.Errorf(codes.InvalidArgument, "unsupported format %q", out.format)
	}

	v := common.NewValidator().
		Field("language", out.opts.Language, common.OCRLanguage).
		Field("quality", string(out.opts.Quality), common.OCRQuality).
		Field("max_size_mb", out.opts.MaxSizeMB, common.NonNegative)
	if err := common.ValidateAndReturnError(v); err != nil {
		return out, err
	}
	return out, nil
}

// Extract runs one document synchronously.
func (s *StatementService) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := parseExtractRequest(req)
	if err != nil {
		s.logger.Error("invalid extract request", "error", err)
		return nil, err
	}

	s.logger.Info("starting extraction", "source", in.source, "bytes", len(in.data), "use_ocr", in.opts.UseOCR)
	res, err := s.processor.ProcessDocument(ctx, core.Request{Source: in.source, Data: in.data, Options: in.opts})
	if err != nil {
		s.logger.Warn("extraction failed", "source", in.source, "job_id", res.JobID, "error", err)
		return nil, common.GRPCStatus(err)
	}
	return s.resultStruct(res, in.format)
}

// Submit queues one document and returns its job id.
func (s *StatementService) Submit(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	if s.queue == nil {
		return nil, status.Error(codes.Unavailable, "async extraction is not enabled")
	}
	in, err := parseExtractRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := s.queue.Submit(ctx, async.Job{
		Source:      in.source,
		Data:        in.data,
		Options:     in.opts,
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	})
	if err != nil {
		s.logger.Error("submit failed", "source", in.source, "error", err)
		return nil, status.Errorf(codes.Unavailable, "submit: %v", err)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *StatementService) GetJob(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.jobs == nil {
		return nil, status.Error(codes.Unavailable, "job ledger is not configured")
	}
	id, err := parseJobID(req.GetValue())
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return jobStruct(job)
}

func (s *StatementService) CancelJob(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s.queue == nil {
		return nil, status.Error(codes.Unavailable, "async extraction is not enabled")
	}
	id, err := parseJobID(req.GetValue())
	if err != nil {
		return nil, err
	}
	ok := s.queue.Cancel(id)
	s.logger.Info("cancel job", "job_id", id, "found", ok)
	return wrapperspb.Bool(ok), nil
}

// ParseManual maps pasted CSV rows by header.
func (s *StatementService) ParseManual(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	csvText := f["csv"].GetStringValue()
	if strings.TrimSpace(csvText) == "" {
		return nil, status.Error(codes.InvalidArgument, "csv is required")
	}
	source := f["source"].GetStringValue()
	if source == "" {
		source = "manual"
	}
	res, err := s.processor.ProcessManual(ctx, source, []byte(csvText))
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return s.resultStruct(res, constants.NormalizeExt(f["format"].GetStringValue()))
}

func (s *StatementService) resultStruct(res core.Result, format string) (*structpb.Struct, error) {
	recs, err := recordsValue(res.Records)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode records: %v", err)
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"job_id":       structpb.NewStringValue(res.JobID.String()),
		"status":       structpb.NewStringValue(string(res.Status)),
		"backend":      structpb.NewStringValue(string(res.Backend)),
		"record_count": structpb.NewNumberValue(float64(len(res.Records))),
		"columns":      stringList(entity.Columns(res.Records)),
		"records":      recs,
	}}
	if format != "" {
		var buf bytes.Buffer
		if err := s.exporter.Write(&buf, format, res.Records); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "export: %v", err)
		}
		out.Fields["format"] = structpb.NewStringValue(format)
		out.Fields["export"] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return out, nil
}

func parseJobID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, status.Error(codes.InvalidArgument, "job id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "job id must be a UUID")
	}
	return id, nil
}

// recordsValue round-trips through JSON so every record keeps its flat shape.
func recordsValue(records []entity.Record) (*structpb.Value, error) {
	if records == nil {
		records = []entity.Record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return rawJSONValue(b)
}

func rawJSONValue(b []byte) (*structpb.Value, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return structpb.NewValue(v)
}

func stringList(ss []string) *structpb.Value {
	vals := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		vals[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func jobStruct(job *entity.ExtractJob) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		"id":           structpb.NewStringValue(job.ID.String()),
		"source":       structpb.NewStringValue(job.Source),
		"content_hash": structpb.NewStringValue(job.ContentHash),
		"size_bytes":   structpb.NewNumberValue(float64(job.SizeBytes)),
		"status":       structpb.NewStringValue(string(job.Status)),
		"backend":      structpb.NewStringValue(string(job.Backend)),
		"record_count": structpb.NewNumberValue(float64(job.RecordCount)),
		"created_at":   structpb.NewStringValue(job.CreatedAt.UTC().Format(time.RFC3339Nano)),
	}
	if job.StartedAt != nil {
		fields["started_at"] = structpb.NewStringValue(job.StartedAt.UTC().Format(time.RFC3339Nano))
	}
	if job.FinishedAt != nil {
		fields["finished_at"] = structpb.NewStringValue(job.FinishedAt.UTC().Format(time.RFC3339Nano))
	}
	if job.ErrorMessage != nil {
		fields["error_message"] = structpb.NewStringValue(*job.ErrorMessage)
	}
	if len(job.Records) > 0 {
		recs, err := rawJSONValue(job.Records)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "decode stored records: %v", err)
		}
		fields["records"] = recs
	}
	return &structpb.Struct{Fields: fields}, nil
}

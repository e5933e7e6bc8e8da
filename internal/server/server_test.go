package server

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/async"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/core"
	"github.com/joseph-ayodele/statement-extractor/internal/entity"
)

type stubProcessor struct {
	lastReq core.Request
	err     error
}

func (p *stubProcessor) ProcessDocument(_ context.Context, req core.Request) (core.Result, error) {
	p.lastReq = req
	if p.err != nil {
		return core.Result{}, p.err
	}
	return core.Result{
		JobID:   uuid.MustParse("8f14e45f-ceea-467f-a0f0-6c4b1c0f3a11"),
		Status:  constants.JobStatusCompleted,
		Backend: constants.BackendTextLayer,
		Records: []entity.Record{{Date: "15/04/2024", Description: "FEE", Debit: "5.00", Page: 1}},
	}, nil
}

func (p *stubProcessor) ProcessManual(_ context.Context, _ string, data []byte) (core.Result, error) {
	return core.Result{
		Status:  constants.JobStatusCompleted,
		Backend: constants.BackendManual,
		Records: []entity.Record{{Date: "14/04/2024", Balance: "86540.65"}},
	}, nil
}

type stubQueue struct {
	submitted []async.Job
	known     map[uuid.UUID]bool
}

func (q *stubQueue) Submit(_ context.Context, job async.Job) (uuid.UUID, error) {
	id := uuid.New()
	q.submitted = append(q.submitted, job)
	q.known[id] = true
	return id, nil
}

func (q *stubQueue) Cancel(id uuid.UUID) bool { return q.known[id] }
func (q *stubQueue) Shutdown(context.Context) {}

type stubJobs struct{ job *entity.ExtractJob }

func (s *stubJobs) Create(context.Context, *entity.ExtractJob) error { return nil }
func (s *stubJobs) Start(context.Context, uuid.UUID) error { return nil }
func (s *stubJobs) FinishSuccess(context.Context, uuid.UUID, constants.Backend, []entity.Record) error {
	return nil
}
func (s *stubJobs) FinishFailure(context.Context, uuid.UUID, constants.JobStatus, constants.Backend, string) error {
	return nil
}
func (s *stubJobs) Get(_ context.Context, id uuid.UUID) (*entity.ExtractJob, error) {
	if s.job == nil || s.job.ID != id {
		return nil, common.ErrNotFound
	}
	return s.job, nil
}
func (s *stubJobs) ListRecent(context.Context, int) ([]*entity.ExtractJob, error) { return nil, nil }

func dial(t *testing.T, svc StatementExtractorServer) (*Client, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn), conn
}

func extractReq(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestExtract(t *testing.T) {
	proc := &stubProcessor{}
	c, _ := dial(t, NewStatementService(proc, nil, nil, nil))

	out, err := c.Extract(context.Background(), extractReq(t, map[string]any{
		"document": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
		"source":   "april.pdf",
		"use_ocr":  true,
		"language": "eng",
		"format":   "csv",
	}))
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.4"), proc.lastReq.Data)
	assert.True(t, proc.lastReq.Options.UseOCR)
	assert.Equal(t, "april.pdf", proc.lastReq.Source)

	f := out.GetFields()
	assert.Equal(t, "COMPLETED", f["status"].GetStringValue())
	assert.Equal(t, "TEXT_LAYER", f["backend"].GetStringValue())
	assert.Equal(t, float64(1), f["record_count"].GetNumberValue())
	rec := f["records"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	assert.Equal(t, "5.00", rec["Debit"].GetStringValue())
	assert.Equal(t, float64(1), rec["Page"].GetNumberValue())

	csv, err := base64.StdEncoding.DecodeString(f["export"].GetStringValue())
	require.NoError(t, err)
	assert.Contains(t, string(csv), "2024-04-15,FEE,5.00,1")
}

func TestExtractErrors(t *testing.T) {
	proc := &stubProcessor{}
	c, _ := dial(t, NewStatementService(proc, nil, nil, nil))
	ctx := context.Background()

	_, err := c.Extract(ctx, extractReq(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Extract(ctx, extractReq(t, map[string]any{"document": "%%%"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Extract(ctx, extractReq(t, map[string]any{"document": "JVBERg==", "language": "xx"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	proc.err = common.ErrPasswordProtected
	_, err = c.Extract(ctx, extractReq(t, map[string]any{"document": "JVBERg=="}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, common.UserMessage(common.ErrPasswordProtected), status.Convert(err).Message())
}

func TestSubmitGetCancel(t *testing.T) {
	q := &stubQueue{known: map[uuid.UUID]bool{}}
	msg := "took too long"
	jobID := uuid.New()
	jobs := &stubJobs{job: &entity.ExtractJob{ID: jobID, Source: "a.pdf", Status: constants.JobStatusTimeout, ErrorMessage: &msg}}
	c, _ := dial(t, NewStatementService(&stubProcessor{}, q, jobs, nil))
	ctx := context.Background()

	id, err := c.Submit(ctx, extractReq(t, map[string]any{"document": "JVBERg==", "source": "a.pdf"}))
	require.NoError(t, err)
	require.Len(t, q.submitted, 1)
	assert.Equal(t, "a.pdf", q.submitted[0].Source)

	ok, err := c.CancelJob(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok.GetValue())
	ok, err = c.CancelJob(ctx, wrapperspb.String(uuid.NewString()))
	require.NoError(t, err)
	assert.False(t, ok.GetValue())

	job, err := c.GetJob(ctx, wrapperspb.String(jobID.String()))
	require.NoError(t, err)
	assert.Equal(t, "TIMEOUT", job.GetFields()["status"].GetStringValue())
	assert.Equal(t, msg, job.GetFields()["error_message"].GetStringValue())

	_, err = c.GetJob(ctx, wrapperspb.String(uuid.NewString()))
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = c.GetJob(ctx, wrapperspb.String("nope"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAsyncUnavailableWithoutQueue(t *testing.T) {
	c, _ := dial(t, NewStatementService(&stubProcessor{}, nil, nil, nil))
	_, err := c.Submit(context.Background(), extractReq(t, map[string]any{"document": "JVBERg=="}))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestParseManual(t *testing.T) {
	c, _ := dial(t, NewStatementService(&stubProcessor{}, nil, nil, nil))

	out, err := c.ParseManual(context.Background(), extractReq(t, map[string]any{"csv": "Date,Balance\n14/04/2024,86540.65\n"}))
	require.NoError(t, err)
	assert.Equal(t, "MANUAL", out.GetFields()["backend"].GetStringValue())

	_, err = c.ParseManual(context.Background(), extractReq(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealth(t *testing.T) {
	_, conn := dial(t, NewStatementService(&stubProcessor{}, nil, nil, nil))
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
)

// maxMessageBytes leaves room for base64 overhead on a 10 MB document.
const maxMessageBytes = 16 << 20

// NewGRPCServer registers the statement service and standard health checks.
func NewGRPCServer(svc StatementExtractorServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageBytes),
		grpc.MaxSendMsgSize(maxMessageBytes),
		grpc.ChainUnaryInterceptor(requestLogger(logger)),
	)
	RegisterStatementExtractorServer(s, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)
	return s, hs
}

// requestLogger tags each call with a request id (from x-request-id metadata
// when the caller sent one) and logs its outcome.
func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, rid)

		resp, err := handler(ctx, req)
		logger.Info("rpc", "method", info.FullMethod, "request_id", rid,
			"code", status.Code(err).String(), "elapsed_ms", time.Since(start).Milliseconds())
		return resp, err
	}
}

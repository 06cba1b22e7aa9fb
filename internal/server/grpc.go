package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

// IngestionService is the health service name that tracks run outcomes.
const IngestionService = "costreports.Ingestion"

// Health reports process liveness under "" and the last run under IngestionService.
type Health struct {
	srv    *health.Server
	logger *slog.Logger
}

// NewHealth starts with the ingestion service NOT_SERVING until a run completes.
func NewHealth(logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(IngestionService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{srv: hs, logger: logger}
}

// Observe records a run outcome. A run that could not list the source turns
// the service NOT_SERVING; partial failures still count as serving.
func (h *Health) Observe(res entity.RunResult) {
	status := healthpb.HealthCheckResponse_SERVING
	if !res.Success {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus(IngestionService, status)
	h.logger.Info("health.status", "service", IngestionService, "status", status.String(), "run_id", res.RunID)
}

// Shutdown marks every service NOT_SERVING.
func (h *Health) Shutdown() { h.srv.Shutdown() }

// NewGRPCServer builds a gRPC server carrying the health and reflection services.
func NewGRPCServer(h *Health, logger *slog.Logger) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(logger)))
	healthpb.RegisterHealthServer(s, h.srv)
	// Reflection for grpcurl
	reflection.Register(s)
	return s
}

func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc.request",
			"method", info.FullMethod,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

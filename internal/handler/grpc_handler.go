package handler

import (
	"context"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// GRPCHandler serves the gRPC health service. Each named dependency is
// exposed as its own service name; the empty name is the overall status.
type GRPCHandler struct {
	health *health.Server
	checks map[string]Pinger
	log    *logger.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(checks map[string]Pinger, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{
		health: health.NewServer(),
		checks: checks,
		log:    log,
	}
}

// Register attaches the health and reflection services to srv
func (h *GRPCHandler) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, h.health)
	reflection.Register(srv)
}

// Refresh pings every dependency once and publishes the results
func (h *GRPCHandler) Refresh(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, p := range h.checks {
		status := healthpb.HealthCheckResponse_SERVING
		if err := p.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
		}
		h.health.SetServingStatus(name, status)
	}
	h.health.SetServingStatus("", overall)
}

// Watch refreshes on every tick until ctx is done, then marks everything as
// not serving so clients drain before the server stops.
func (h *GRPCHandler) Watch(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// UnaryLogger logs every unary call with its duration
func UnaryLogger(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)

		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).Dur("duration", time.Since(start)).Msg("gRPC request")
		return resp, err
	}
}

// Package health exposes the standard gRPC health service backed by the
// ticket store's connectivity.
package health

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "supportdesk"

const defaultInterval = 15 * time.Second

// Pinger reports dependency connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server tracks serving status for the gRPC health protocol.
type Server struct {
	srv      *health.Server
	pinger   Pinger
	interval time.Duration
	logger   *slog.Logger
}

// NewServer creates a health server. A nil pinger means the process is
// always reported as serving.
func NewServer(pinger Pinger, interval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	s := &Server{
		srv:      health.NewServer(),
		pinger:   pinger,
		interval: interval,
		logger:   logger,
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return s
}

// Register attaches the health service to a gRPC server.
func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.srv)
}

// Check pings the store once and publishes the resulting status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(pingCtx); err != nil {
			s.logger.Warn("Health check failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.set(status)
	return status
}

// Run re-checks on every interval until ctx is cancelled, then marks the
// service as shutting down.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			s.srv.Shutdown()
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.srv.SetServingStatus("", status)
	s.srv.SetServingStatus(ServiceName, status)
}

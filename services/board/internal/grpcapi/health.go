// Package grpcapi exposes the board's gRPC surface: the standard health
// service, mirroring HTTP readiness, plus server reflection.
package grpcapi

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check service name reported besides "".
const ServiceName = "board.Board"

type HealthServer struct {
	Addr     string
	Ready    func(ctx context.Context) error
	Interval time.Duration
	Log      *zap.Logger

	grpc   *grpc.Server
	health *health.Server
}

func NewHealthServer(addr string, ready func(ctx context.Context) error, log *zap.Logger) *HealthServer {
	if log == nil {
		log = zap.NewNop()
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &HealthServer{
		Addr:     addr,
		Ready:    ready,
		Interval: 10 * time.Second,
		Log:      log,
		grpc:     srv,
		health:   hs,
	}
}

// Check evaluates readiness once and publishes the resulting status.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.Ready != nil {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.Ready(cctx)
		cancel()
		if err != nil {
			s.Log.Warn("grpc health: not ready", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Run serves until ctx is cancelled, refreshing status every Interval.
func (s *HealthServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve is Run on an existing listener.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)

	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check(ctx)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			s.grpc.Stop()
		}
	}()

	s.Log.Info("grpc server starting", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

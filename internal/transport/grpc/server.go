// grpc — служебный gRPC-порт: стандартный grpc.health.v1 (+ reflection в local/dev)
// с цепочкой recover/logging/timeout/prometheus интерсепторов.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/go-discussions/internal/transport/grpc/interceptors"
)

// Server — gRPC-сервер со своим health-сервисом.
type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// Options — параметры сборки сервера.
type Options struct {
	Logger     *slog.Logger
	Timeout    time.Duration
	Reflection bool
}

// NewServer собирает сервер; статус health — NOT_SERVING до SetServing(true).
func NewServer(opts Options) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(opts.Logger),
			interceptors.UnaryLoggingInterceptor(opts.Logger),
			interceptors.WithTimeout(opts.Timeout),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecover(opts.Logger),
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	if opts.Reflection {
		reflection.Register(srv)
	}

	grpc_prometheus.Register(srv)

	return &Server{srv: srv, health: hs}
}

// SetServing переключает статус health-сервиса.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

// Serve блокируется до остановки сервера.
func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Shutdown — GracefulStop с принудительной остановкой по ctx.
// Возвращает false, если пришлось останавливать принудительно.
func (s *Server) Shutdown(ctx context.Context) bool {
	s.SetServing(false)

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		s.srv.Stop()
		<-done
		return false
	}
}

package api

import (
	"context"
	"fmt"
	"net"

	"roombook/internal/config"
	"roombook/internal/logging"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// GRPCServer serves the read-only availability service.
type GRPCServer struct {
	server   *grpc.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return NewGRPCServerWithListener(cfg, svc, lis, logger), nil
}

// NewGRPCServerWithListener serves on lis, which lets tests use bufconn.
// Interceptors run outermost first: panic recovery, then request
// observation, then auth and rate limiting.
func NewGRPCServerWithListener(cfg *config.APIConfig, svc Services, lis net.Listener, logger *zerolog.Logger) *GRPCServer {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryUnaryInterceptor(logger),
		ObserveUnaryInterceptor(logger),
		NewAuthInterceptor(cfg).Unary(),
	))
	RegisterAvailabilityServer(srv, NewAvailabilityService(svc))
	if cfg.GRPC.Reflection {
		reflection.Register(srv)
	}
	return &GRPCServer{server: srv, listener: lis, log: logging.Component(logger, "grpc")}
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// Shutdown drains in-flight calls and falls back to a hard stop when ctx
// expires first.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		<-done
	}
}

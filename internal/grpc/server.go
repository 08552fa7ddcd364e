package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"userStore/internal/auth"
	"userStore/internal/config"
	"userStore/repository"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	requestIDHeader   = "x-request-id"
)

// NewServer builds a gRPC server exposing the user service and the standard health service.
// Every call except the health check must carry a Bearer JWT signed with cfg.Auth.JWTSecret.
func NewServer(cfg *config.Config, users repository.UserRepositoryI, logger zerolog.Logger) *grpc.Server {
	if cfg == nil {
		panic("config is required")
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		NewUnaryLoggingInterceptor(logger),
		auth.NewUnaryAuthInterceptor(cfg.Auth.JWTSecret, healthCheckMethod),
	))

	RegisterUserServiceServer(srv, &UserServer{Users: users})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, users repository.UserRepositoryI, logger zerolog.Logger) (func(context.Context) error, error) {
	srv := NewServer(cfg, users, logger)

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc serve stopped")
		}
	}()

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}

// NewUnaryLoggingInterceptor tags each call with a request id and logs its outcome.
// An incoming x-request-id header is reused; otherwise a UUID is generated.
// The request-scoped logger is available to handlers through zerolog.Ctx.
func NewUnaryLoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := requestID(ctx)
		l := logger.With().Str("request_id", reqID).Str("method", info.FullMethod).Logger()
		ctx = l.WithContext(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, reqID))

		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			l.Warn().Err(err).Str("code", status.Code(err).String()).Dur("duration", time.Since(start)).Msg("grpc request failed")
			return resp, err
		}
		l.Debug().Dur("duration", time.Since(start)).Msg("grpc request")
		return resp, nil
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

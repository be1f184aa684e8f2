package api

import (
	"context"
	"runtime/debug"
	"time"

	"roombook/internal/logging"
	"roombook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

type requestIDKey struct{}

// RequestID returns the id assigned to the current gRPC call, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ObserveUnaryInterceptor tags every call with a request id, echoes it back
// in the response header, logs the outcome and records its latency.
func ObserveUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	log := logging.Component(logger, "grpc")

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := incomingRequestID(ctx)
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)
		code := status.Code(err)
		metrics.ObserveRPC(info.FullMethod, code.String(), elapsed)

		var event *zerolog.Event
		switch code {
		case codes.OK:
			event = log.Info()
		case codes.Internal, codes.Unknown:
			event = log.Error().Err(err)
		default:
			event = log.Warn().Str("error", status.Convert(err).Message())
		}
		event.
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("peer", peerAddr(ctx)).
			Str("code", code.String()).
			Dur("duration", elapsed).
			Msg("grpc request")
		return resp, err
	}
}

// RecoveryUnaryInterceptor turns a handler panic into codes.Internal.
func RecoveryUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	log := logging.Component(logger, "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("method", info.FullMethod).
					Str("request_id", RequestID(ctx)).
					Bytes("stack", debug.Stack()).
					Msg("grpc handler panicked")
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func incomingRequestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if id := first(md.Get(requestIDMetadataKey)); id != "" {
		return id
	}
	return uuid.NewString()
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

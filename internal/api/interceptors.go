package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// ChainUnaryInterceptors runs interceptors in order, the first one outermost.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var call func(i int, ctx context.Context, req any) (any, error)
		call = func(i int, ctx context.Context, req any) (any, error) {
			if i == len(interceptors) {
				return handler(ctx, req)
			}
			return interceptors[i](ctx, req, info, func(nextCtx context.Context, nextReq any) (any, error) {
				return call(i+1, nextCtx, nextReq)
			})
		}
		return call(0, ctx, req)
	}
}

// ChainStreamInterceptors is the streaming counterpart of ChainUnaryInterceptors.
func ChainStreamInterceptors(interceptors ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		var call func(i int, srv any, ss grpc.ServerStream) error
		call = func(i int, srv any, ss grpc.ServerStream) error {
			if i == len(interceptors) {
				return handler(srv, ss)
			}
			return interceptors[i](srv, ss, info, func(nextSrv any, nextSS grpc.ServerStream) error {
				return call(i+1, nextSrv, nextSS)
			})
		}
		return call(0, srv, ss)
	}
}

func grpcLogger(logger *zerolog.Logger) zerolog.Logger {
	if logger == nil {
		return zerolog.Nop()
	}
	return logger.With().Str("component", "grpc").Logger()
}

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := grpcLogger(logger)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(base, ctx, requestID, info.FullMethod, start, err)
		return resp, err
	}
}

func LoggingStreamInterceptor(logger *zerolog.Logger) grpc.StreamServerInterceptor {
	base := grpcLogger(logger)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		requestID := requestIDFromMetadata(ctx)
		_ = ss.SetHeader(metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		err := handler(srv, ss)
		logCall(base, ctx, requestID, info.FullMethod, start, err)
		return err
	}
}

func logCall(base zerolog.Logger, ctx context.Context, requestID, method string, start time.Time, err error) {
	remote := clientKeyUnknown
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		remote = p.Addr.String()
	}

	code := codes.OK
	if err != nil {
		code = status.Code(err)
	}

	ev := base.Info()
	if code != codes.OK {
		ev = base.Warn()
	}
	ev.Str("request_id", requestID).
		Str("method", method).
		Str("remote", remote).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg("grpc request")
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if id := first(md.Get(requestIDMetadataKey)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

package nbi

import (
	"context"
	"time"

	"github.com/signalsfoundry/spring-simulator/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// RequestIDUnaryServerInterceptor ensures a request_id is present on the
// context, sourcing it from inbound metadata if provided, and attaches a
// per-request logger annotated with request_id and method. When the call
// finishes it logs the status code and latency: Debug for OK, Warn otherwise.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if incoming := firstHeader(md, requestIDMetadataKey); incoming != "" {
				ctx = logging.ContextWithRequestID(ctx, incoming)
			}
		}

		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(logging.String("method", info.FullMethod)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []logging.Field{
			logging.String("code", code.String()),
			logging.Duration("latency", time.Since(start)),
		}
		if code == codes.OK {
			reqLog.Debug(ctx, "rpc handled", fields...)
		} else {
			reqLog.Warn(ctx, "rpc failed", append(fields, logging.Err(err))...)
		}
		return resp, err
	}
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

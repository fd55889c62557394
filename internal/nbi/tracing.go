package nbi

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/spring-simulator/internal/logging"
	"github.com/signalsfoundry/spring-simulator/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// TracingUnaryServerInterceptor renames the RPC span to
// NBI/<service>/<method> and tags it with the request ID and status code.
// Without the otelgrpc stats handler it starts the server span itself.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := observability.Tracer()

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		spanName := fmt.Sprintf("NBI/%s/%s", service, method)

		span := trace.SpanFromContext(ctx)
		created := false
		if !span.SpanContext().IsValid() {
			ctx, span = tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			created = true
		} else {
			span.SetName(spanName)
		}

		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		}
		if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
			attrs = append(attrs, attribute.String("request_id", reqID))
		}
		span.SetAttributes(attrs...)

		resp, err := handler(ctx, req)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", status.Code(err).String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, status.Convert(err).Message())
		}

		if created {
			span.End()
		}
		return resp, err
	}
}

// startStateSpan opens an internal span around one SimulationState call.
func startStateSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, "state."+op, trace.WithAttributes(attrs...))
}

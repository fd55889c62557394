package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/spring-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used for simulation spans.
const TracerName = "github.com/signalsfoundry/spring-simulator"

const (
	defaultServiceName  = "spring-simulator"
	defaultOTLPEndpoint = "localhost:4317"
	serviceNamespace    = "springsim"
)

// TracingConfig selects the span exporter and sampler.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // otlp collector host:port
	SampleRatio float64
	// Writer receives stdout-exporter spans; nil means os.Stderr.
	Writer io.Writer
}

// TracingConfigFromEnv reads the SIM_TRACING_* and SIM_OTLP_ENDPOINT
// variables.
func TracingConfigFromEnv() TracingConfig {
	return tracingConfigFrom(os.Getenv)
}

func tracingConfigFrom(getenv func(string) string) TracingConfig {
	cfg := TracingConfig{
		ServiceName: getenv("SIM_TRACING_SERVICE_NAME"),
		Exporter:    strings.ToLower(strings.TrimSpace(getenv("SIM_TRACING_EXPORTER"))),
		Endpoint:    getenv("SIM_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	cfg.Enabled, _ = strconv.ParseBool(getenv("SIM_TRACING_ENABLED"))
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.Exporter == "" {
		cfg.Exporter = "stdout"
	}
	if raw := getenv("SIM_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

// InitTracing installs the global tracer provider and propagators. The
// returned function flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", serviceNamespace),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(ratioSampler(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func ratioSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
}

// Tracer returns the simulator tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// ShutdownWithTimeout flushes spans within five seconds. Failures are only
// logged since they happen on the way out.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

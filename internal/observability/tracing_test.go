package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestTracingConfigFromEnv(t *testing.T) {
	cfg := tracingConfigFrom(envMap(map[string]string{
		"SIM_TRACING_ENABLED":      "TRUE",
		"SIM_TRACING_EXPORTER":     " OTLP ",
		"SIM_TRACING_SAMPLE_RATIO": "0.25",
		"SIM_OTLP_ENDPOINT":        "collector:4317",
	}))
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "spring-simulator" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestTracingConfigDefaults(t *testing.T) {
	cfg := tracingConfigFrom(envMap(map[string]string{
		"SIM_TRACING_ENABLED":      "yes please",
		"SIM_TRACING_SAMPLE_RATIO": "7",
	}))
	if cfg.Enabled {
		t.Fatalf("unparseable SIM_TRACING_ENABLED should leave tracing off")
	}
	if cfg.SampleRatio != 1 || cfg.Exporter != "stdout" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestTracingConfigFromProcessEnv(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "1")
	t.Setenv("SIM_TRACING_SERVICE_NAME", "springs-test")
	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.ServiceName != "springs-test" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	_, span := Tracer().Start(context.Background(), "sim.Step")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Fatalf("expected noop span when tracing is disabled")
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "springs-test",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "sim.Run")
	if !span.SpanContext().IsValid() {
		t.Fatalf("expected a recording span when tracing is enabled")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	if out := buf.String(); !strings.Contains(out, "sim.Run") || !strings.Contains(out, "springs-test") {
		t.Fatalf("exported spans missing name or service: %q", out)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestRatioSampler(t *testing.T) {
	cases := map[float64]string{
		1:   "AlwaysOnSampler",
		0:   "AlwaysOffSampler",
		0.5: "TraceIDRatioBased{0.5}",
	}
	for ratio, want := range cases {
		if got := ratioSampler(ratio).Description(); got != want {
			t.Fatalf("ratioSampler(%v) = %q, want %q", ratio, got, want)
		}
	}
}

package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"podscript/internal/config"
	"podscript/internal/services"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestSetupDisabledIsNoop(t *testing.T) {
	restoreGlobalProvider(t)
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), config.Tracing{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("disabled tracing must not replace the global provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupStdoutExporter(t *testing.T) {
	restoreGlobalProvider(t)
	var buf bytes.Buffer
	cfg := config.Tracing{Enabled: true, Exporter: "stdout", ServiceName: "podscript-test", SampleRatio: 1}

	shutdown, err := Setup(context.Background(), cfg, nil, WithWriter(&buf), WithVersion("1.2.3"))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "episode.outline")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"episode.outline", "podscript-test", "1.2.3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("exported span missing %q:\n%s", want, out)
		}
	}
}

func TestSetupZeroRatioDropsSpans(t *testing.T) {
	restoreGlobalProvider(t)
	var buf bytes.Buffer
	cfg := config.Tracing{Enabled: true, Exporter: "stdout", SampleRatio: 0}

	shutdown, err := Setup(context.Background(), cfg, nil, WithWriter(&buf))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "episode.run")
	span.End()
	_ = shutdown(context.Background())
	if strings.Contains(buf.String(), "episode.run") {
		t.Fatal("unsampled span should not be exported")
	}
}

func TestSetupExporters(t *testing.T) {
	restoreGlobalProvider(t)
	for _, cfg := range []config.Tracing{
		{Enabled: true, Exporter: "none"},
		{Enabled: true, Exporter: "otlp", Endpoint: "localhost:4318", Insecure: true},
	} {
		shutdown, err := Setup(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("Setup(%s): %v", cfg.Exporter, err)
		}
		_ = shutdown(context.Background())
	}

	_, err := Setup(context.Background(), config.Tracing{Enabled: true, Exporter: "jaeger"}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClampRatio(t *testing.T) {
	tests := map[float64]float64{-1: 0, 0: 0, 0.25: 0.25, 1: 1, 3: 1}
	for in, want := range tests {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v) = %v, want %v", in, got, want)
		}
	}
}

// Package tracing installs the OpenTelemetry tracer provider used by the
// episode runner's stage spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"podscript/internal/config"
	"podscript/internal/logging"
	"podscript/internal/services"
)

// Exporter names accepted in [tracing].exporter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Option customizes Setup.
type Option func(*setupOptions)

type setupOptions struct {
	writer  io.Writer
	version string
}

// WithWriter sends stdout-exporter output to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *setupOptions) { o.writer = w }
}

// WithVersion records the service version on the resource.
func WithVersion(version string) Option {
	return func(o *setupOptions) { o.version = version }
}

// Setup installs a global tracer provider when tracing is enabled and returns
// its shutdown function. When disabled the global provider is left alone and
// spans are dropped by the default no-op provider.
func Setup(ctx context.Context, cfg config.Tracing, logger *slog.Logger, opts ...Option) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	options := setupOptions{writer: os.Stderr}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	logger = logging.NewComponentLogger(logger, "tracing")

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "podscript"
	}
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if v := strings.TrimSpace(options.version); v != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(v))
	}
	res, err := resource.New(ctx, resource.WithTelemetrySDK(), resource.WithAttributes(attrs...))
	if err != nil {
		logging.WarnWithContext(logger, "trace resource detection failed", "tracing_resource",
			logging.Error(err),
			logging.String(logging.FieldImpact, "spans carry only the service attributes"),
		)
		res = resource.NewSchemaless(attrs...)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	}
	exporter, err := buildExporter(ctx, cfg, options.writer)
	if err != nil {
		return noopShutdown, err
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	logger.Debug("tracing initialized",
		logging.String("exporter", exporterName(cfg)),
		logging.String("service", serviceName),
		logging.Float64("sample_ratio", clampRatio(cfg.SampleRatio)),
	)
	return tp.Shutdown, nil
}

func exporterName(cfg config.Tracing) string {
	name := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if name == "" {
		return ExporterStdout
	}
	return name
}

func buildExporter(ctx context.Context, cfg config.Tracing, w io.Writer) (sdktrace.SpanExporter, error) {
	switch exporterName(cfg) {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		return exp, nil
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "tracing", "setup",
			fmt.Sprintf("unknown exporter %q (expected stdout, otlp, or none)", cfg.Exporter), nil)
	}
}

func clampRatio(r float64) float64 {
	switch {
	case r <= 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}

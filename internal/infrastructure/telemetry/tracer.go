// Package telemetry wires OpenTelemetry tracing, metrics and the zap log
// bridge, all exported over OTLP gRPC.
package telemetry

import (
	"context"
	"fmt"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/infrastructure/config"
)

const shutdownTimeout = 10 * time.Second

// signal is the part every provider shares: whether it exports at all and
// how to flush it on the way out.
type signal struct {
	name   string
	logger *zap.Logger
	flush  func(context.Context) error
}

func (s *signal) IsEnabled() bool { return s.flush != nil }

// Shutdown flushes buffered data, giving up after shutdownTimeout.
func (s *signal) Shutdown(ctx context.Context) error {
	if s.flush == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.flush(ctx); err != nil {
		return fmt.Errorf("shutdown %s provider: %w", s.name, err)
	}
	s.logger.Debug("telemetry provider stopped", zap.String("signal", s.name))
	return nil
}

func describe(s *signal, cfg config.TelemetryConfig, extra ...zap.Field) {
	s.logger.Info("telemetry export enabled", append([]zap.Field{
		zap.String("signal", s.name),
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	}, extra...)...)
}

// serviceResource tags exported data with the service name on top of the
// SDK's host and process attributes.
func serviceResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	return res, nil
}

type TracerProvider struct {
	signal
	provider *sdktrace.TracerProvider
	profiled trace.TracerProvider
}

// NewTracerProvider installs the global tracer provider and the W3C
// propagators. With telemetry off the global no-op provider is left alone.
func NewTracerProvider(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{signal: signal{name: "traces", logger: logger}}
	if !cfg.Enabled {
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	tp.provider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(ratioSampler(cfg.SamplingRatio))),
	)
	tp.flush = tp.provider.Shutdown
	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	describe(&tp.signal, cfg, zap.Float64("sampling_ratio", cfg.SamplingRatio))
	return tp, nil
}

func ratioSampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(ratio)
}

// EnableSpanProfiles makes the global tracer stamp each sampled span's ID on
// the goroutine's pprof labels, linking spans to their CPU profiles. It
// reports whether the wrapping happened; with tracing off there is nothing
// to wrap.
func (tp *TracerProvider) EnableSpanProfiles() bool {
	if tp.provider == nil {
		return false
	}
	if tp.profiled == nil {
		tp.profiled = otelpyroscope.NewTracerProvider(tp.provider)
		otel.SetTracerProvider(tp.profiled)
		tp.logger.Info("span profiles enabled", zap.String("signal", tp.name))
	}
	return true
}

func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.profiled != nil {
		return tp.profiled.Tracer(name, opts...)
	}
	if tp.provider != nil {
		return tp.provider.Tracer(name, opts...)
	}
	return otel.Tracer(name, opts...)
}

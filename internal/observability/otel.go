package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/courier/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown flushes and stops the exporters.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// InitOTLP installs global tracer and meter providers exporting over OTLP.
// With no endpoint configured it only sets the propagator and returns a no-op shutdown.
func InitOTLP(ctx context.Context, cfg config.OTLPConfig, version string) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	if cfg.Endpoint == "" {
		return noop, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "courier"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, metricExporter, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(15*time.Second))),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, cfg config.OTLPConfig) (trace.SpanExporter, metric.Exporter, error) {
	switch strings.ToLower(cfg.Protocol) {
	case "grpc":
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			traceOpts = append(traceOpts, otlptracegrpc.WithHeaders(cfg.Headers))
			metricOpts = append(metricOpts, otlpmetricgrpc.WithHeaders(cfg.Headers))
		}
		te, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gRPC trace exporter: %w", err)
		}
		me, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gRPC metric exporter: %w", err)
		}
		return te, me, nil
	case "", "http":
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			traceOpts = append(traceOpts, otlptracehttp.WithHeaders(cfg.Headers))
			metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		te, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create HTTP trace exporter: %w", err)
		}
		me, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create HTTP metric exporter: %w", err)
		}
		return te, me, nil
	default:
		return nil, nil, fmt.Errorf("unsupported otlp protocol: %s", cfg.Protocol)
	}
}

// Package tracing wires the process's otel.TracerProvider, grounded on the
// teacher's tracing/otel.go. The webhook dispatcher's tracer
// ("internal/webhook") reports through whatever provider Init
// installs; if OTEL_EXPORTER_OTLP_ENDPOINT is unset, tracing degrades to
// the otel no-op provider rather than failing startup.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// Init installs a batching TracerProvider exporting to endpoint via OTLP
// gRPC. It returns a shutdown func to call during graceful shutdown. If
// endpoint is empty, tracing stays on otel's default no-op provider.
func Init(ctx context.Context, serviceName, endpoint string, log *zap.Logger) func() {
	if endpoint == "" {
		return func() {}
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		log.Error("tracing: build otlp exporter, continuing without tracing", zap.Error(err))
		return func() {}
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		log.Error("tracing: build resource, continuing without tracing", zap.Error(err))
		return func() {}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("tracing: shutdown provider", zap.Error(err))
		}
	}
}

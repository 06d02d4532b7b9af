// Package telemetry wires the store's ambient OpenTelemetry tracing and
// metrics. Instruments are registered against the global delegating
// provider at package init time (the pattern in
// internal/storage/dolt/store.go's doltTracer/doltMetrics), so every span
// and counter call below is a no-op until Init installs a real provider and
// automatically starts forwarding once it does.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/agentctx/ctx"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	opCounter    metric.Int64Counter
	opDurationMs metric.Float64Histogram
)

func init() {
	opCounter, _ = meter.Int64Counter("ctx.op.count",
		metric.WithDescription("facade operations invoked, by op and outcome"),
		metric.WithUnit("{op}"),
	)
	opDurationMs, _ = meter.Float64Histogram("ctx.op.duration_ms",
		metric.WithDescription("facade operation latency"),
		metric.WithUnit("ms"),
	)
}

// Shutdown stops the providers installed by Init. Callers that never call
// Init may call the returned no-op freely.
type Shutdown func(context.Context) error

// Init installs stdout-exporting trace and metric providers as the global
// OpenTelemetry providers. It is meant for local/dev use and for the
// repo's own test suite; a production embedder is expected to call
// otel.SetTracerProvider/SetMeterProvider itself before opening a
// repository, in which case Init should not be called at all.
func Init(ctx context.Context) (Shutdown, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: new trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: new metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}

// StartSpan starts a span named "ctx.<operation>" (spec.md §6.6). Every
// mutating facade call wraps its body in one of these; the span never
// carries object ids or pack content as attributes, only operation-shaped
// metadata, keeping observability orthogonal to on-disk identity.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span (if non-nil) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordOp increments the operation counter and duration histogram for op.
func RecordOp(ctx context.Context, op string, durationMs float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	opCounter.Add(ctx, 1, attrs)
	opDurationMs.Record(ctx, durationMs, attrs)
}

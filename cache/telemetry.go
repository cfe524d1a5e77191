package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/agentuity/memocache/cache"

// instruments records one span and a set of counters per call.
type instruments struct {
	tracer   trace.Tracer
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(cfg config) (*instruments, error) {
	meter := cfg.meterProvider.Meter(instrumentationName)

	calls, err := meter.Int64Counter(
		"memocache.calls",
		metric.WithDescription("Calls through a memoized function, by mode and outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"memocache.errors",
		metric.WithDescription("Calls that returned an error from the backend or the wrapped function"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"memocache.duration_ms",
		metric.WithDescription("Wall time of a memoized call in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{
		tracer:   cfg.tracerProvider.Tracer(instrumentationName),
		calls:    calls,
		errors:   errorCount,
		duration: duration,
	}, nil
}

func (i *instruments) start(ctx context.Context, prefix string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "memocache.call",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("memocache.prefix", prefix)),
	)
}

func (i *instruments) finish(ctx context.Context, span trace.Span, prefix string, key string, mode Mode, reason Reason, started time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("memocache.prefix", prefix),
		attribute.String("memocache.mode", mode.String()),
		attribute.String("memocache.outcome", string(reason)),
	}
	opt := metric.WithAttributes(attrs...)

	i.calls.Add(ctx, 1, opt)
	if err != nil {
		i.errors.Add(ctx, 1, opt)
	}
	i.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, opt)

	span.SetAttributes(append(attrs, attribute.String("memocache.key", key))...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package query

import (
	"context"
	"fmt"
	"time"

	"github.com/zero-day-ai/attack-kb/kberr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metric instrument names.
const (
	MetricQueryCount    = "attackkb.query.count"
	MetricQueryDuration = "attackkb.query.duration"
	MetricQueryResults  = "attackkb.query.results"
)

// Outcome attribute values.
const (
	outcomeOK              = "ok"
	outcomeNotFound        = "not_found"
	outcomeInvalidArgument = "invalid_argument"
	outcomeError           = "error"
)

// otelMetrics holds the instruments created from the configured meter.
type otelMetrics struct {
	// countCounter increments once per query
	countCounter metric.Int64Counter

	// durationHistogram records query latency in milliseconds
	durationHistogram metric.Float64Histogram

	// resultsHistogram records the number of records a query returned
	resultsHistogram metric.Int64Histogram
}

// initOTelMetrics creates the instruments. It returns nil metrics when no
// meter is configured.
func (e *Engine) initOTelMetrics() (*otelMetrics, error) {
	if e.meter == nil {
		return nil, nil
	}

	metrics := &otelMetrics{}
	var err error

	metrics.countCounter, err = e.meter.Int64Counter(
		MetricQueryCount,
		metric.WithDescription("Number of knowledge-base queries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create count counter: %w", err)
	}

	metrics.durationHistogram, err = e.meter.Float64Histogram(
		MetricQueryDuration,
		metric.WithDescription("Query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	metrics.resultsHistogram, err = e.meter.Int64Histogram(
		MetricQueryResults,
		metric.WithDescription("Number of records returned per query"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create results histogram: %w", err)
	}

	return metrics, nil
}

// observe starts the span for op and returns a function that ends it and
// records metrics. Without a tracer or meter it only measures time.
func (e *Engine) observe(ctx context.Context, op string) (context.Context, func(results int, err error)) {
	start := time.Now()

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, op)
	}

	return ctx, func(results int, err error) {
		outcome := classify(err)

		if span != nil {
			span.SetAttributes(
				attribute.String("query.outcome", outcome),
				attribute.Int("query.results", results),
			)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}

		if e.metrics == nil {
			return
		}

		opts := metric.WithAttributes(
			attribute.String("query.operation", op),
			attribute.String("query.outcome", outcome),
		)
		e.metrics.countCounter.Add(ctx, 1, opts)
		e.metrics.durationHistogram.Record(ctx, float64(time.Since(start).Microseconds())/1000, opts)
		e.metrics.resultsHistogram.Record(ctx, int64(results), opts)
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case kberr.IsNotFound(err):
		return outcomeNotFound
	case kberr.IsInvalidArgument(err):
		return outcomeInvalidArgument
	default:
		return outcomeError
	}
}

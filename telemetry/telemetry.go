// Package telemetry wires OpenTelemetry SDK providers whose output goes to
// a slog logger: finished spans are logged as they end and metric totals
// are logged on Flush and Shutdown.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer and meter handed out by Providers.
const InstrumentationName = "github.com/zero-day-ai/attack-kb"

// LogSpanExporter implements sdktrace.SpanExporter by logging each span at
// debug level. Export never fails.
type LogSpanExporter struct {
	logger *slog.Logger
}

var _ sdktrace.SpanExporter = (*LogSpanExporter)(nil)

// NewLogSpanExporter creates an exporter writing to logger.
func NewLogSpanExporter(logger *slog.Logger) *LogSpanExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSpanExporter{logger: logger}
}

// ExportSpans logs spans.
func (e *LogSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		args := []any{
			"span", span.Name(),
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
			"duration_ms", float64(span.EndTime().Sub(span.StartTime()).Microseconds()) / 1000,
			"status", span.Status().Code.String(),
		}
		if span.Parent().IsValid() {
			args = append(args, "parent_span_id", span.Parent().SpanID().String())
		}
		if desc := span.Status().Description; desc != "" {
			args = append(args, "status_description", desc)
		}
		for _, kv := range span.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "span", args...)
	}
	return nil
}

// Shutdown is a no-op.
func (e *LogSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// Providers holds the SDK tracer and meter providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider

	reader *sdkmetric.ManualReader
	logger *slog.Logger
}

// Setup creates providers for serviceName. Spans are exported synchronously
// so that short CLI runs do not lose them.
func Setup(serviceName, version string, logger *slog.Logger) *Providers {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telemetry")

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	reader := sdkmetric.NewManualReader()

	return &Providers{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(NewLogSpanExporter(logger))),
			sdktrace.WithResource(res),
		),
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
		reader: reader,
		logger: logger,
	}
}

// Tracer returns the module tracer.
func (p *Providers) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(InstrumentationName)
}

// Meter returns the module meter.
func (p *Providers) Meter() metric.Meter {
	return p.MeterProvider.Meter(InstrumentationName)
}

// Flush collects the current metric totals and logs one line per data point.
func (p *Providers) Flush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("failed to collect metrics: %w", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			p.logMetric(ctx, m)
		}
	}
	return nil
}

func (p *Providers) logMetric(ctx context.Context, m metricdata.Metrics) {
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			p.logger.InfoContext(ctx, "metric", "name", m.Name, "attributes", encode(dp.Attributes), "value", dp.Value)
		}
	case metricdata.Sum[float64]:
		for _, dp := range data.DataPoints {
			p.logger.InfoContext(ctx, "metric", "name", m.Name, "attributes", encode(dp.Attributes), "value", dp.Value)
		}
	case metricdata.Histogram[int64]:
		for _, dp := range data.DataPoints {
			p.logger.InfoContext(ctx, "metric", "name", m.Name, "attributes", encode(dp.Attributes), "count", dp.Count, "sum", dp.Sum)
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			p.logger.InfoContext(ctx, "metric", "name", m.Name, "attributes", encode(dp.Attributes), "count", dp.Count, "sum", dp.Sum)
		}
	default:
		p.logger.DebugContext(ctx, "metric type not logged", "name", m.Name, "type", fmt.Sprintf("%T", m.Data))
	}
}

func encode(set attribute.Set) string {
	return set.Encoded(attribute.DefaultEncoder())
}

// Shutdown flushes metrics and stops both providers. It waits at most
// five seconds.
func (p *Providers) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return errors.Join(
		p.Flush(ctx),
		p.TracerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
	)
}

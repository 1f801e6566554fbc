package attackkb

import (
	"log/slog"

	"github.com/zero-day-ai/attack-kb/stix"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures Open.
type Option func(*options)

type options struct {
	source         stix.Source
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	includeInact   bool
}

// WithSource reads the dataset from src.
func WithSource(src stix.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithFile reads the dataset from a local file, optionally gzip or zstd
// compressed.
func WithFile(path string) Option {
	return WithSource(stix.FileSource{Path: path})
}

// WithLogger sets the logger for load diagnostics and query debug output.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracerProvider records a span per query.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider records query metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithInactive keeps revoked and deprecated objects in the index.
func WithInactive() Option {
	return func(o *options) {
		o.includeInact = true
	}
}

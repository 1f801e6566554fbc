package attackkb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zero-day-ai/attack-kb/health"
	"github.com/zero-day-ai/attack-kb/index"
	"github.com/zero-day-ai/attack-kb/query"
	"github.com/zero-day-ai/attack-kb/stix"
	"github.com/zero-day-ai/attack-kb/tool"
	"github.com/zero-day-ai/attack-kb/toolset"
	"github.com/zero-day-ai/attack-kb/types"
)

// instrumentationName names the tracer and meter taken from the providers.
const instrumentationName = "github.com/zero-day-ai/attack-kb"

// KB is a loaded knowledge base.
type KB struct {
	engine   *query.Engine
	source   string
	loadedAt time.Time
	logger   *slog.Logger
}

// Open loads the dataset, builds the index and returns a ready KB.
// A source is required (WithSource or WithFile).
func Open(ctx context.Context, opts ...Option) (*KB, error) {
	o := newOptions(opts)
	if o.source == nil {
		return nil, errors.New("attackkb: no dataset source configured")
	}

	start := time.Now()
	bundle, err := stix.Load(ctx, o.source)
	if err != nil {
		return nil, fmt.Errorf("attackkb: load dataset: %w", err)
	}

	kb, err := build(bundle, o.source.String(), o)
	if err != nil {
		return nil, err
	}

	kb.logger.InfoContext(ctx, "knowledge base loaded",
		"source", kb.source,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return kb, nil
}

// FromBundle builds a KB from an already decoded bundle. Source options are
// ignored.
func FromBundle(bundle *stix.Bundle, opts ...Option) (*KB, error) {
	return build(bundle, "bundle", newOptions(opts))
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func build(bundle *stix.Bundle, source string, o *options) (*KB, error) {
	var buildOpts []index.Option
	if o.includeInact {
		buildOpts = append(buildOpts, index.WithInactive())
	}

	idx, err := index.Build(bundle, buildOpts...)
	if err != nil {
		return nil, fmt.Errorf("attackkb: build index: %w", err)
	}

	logger := o.logger.With("component", "attackkb")
	engineOpts := []query.Option{query.WithLogger(o.logger.With("component", "query"))}
	if o.tracerProvider != nil {
		engineOpts = append(engineOpts, query.WithTracer(o.tracerProvider.Tracer(instrumentationName)))
	}
	if o.meterProvider != nil {
		engineOpts = append(engineOpts, query.WithMeter(o.meterProvider.Meter(instrumentationName)))
	}

	engine, err := query.New(idx, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("attackkb: %w", err)
	}

	d := idx.Diagnostics()
	logger.Info("index built",
		"source", source,
		"objects", d.Objects,
		"techniques", d.Entities[index.KindTechnique],
		"tactics", d.Entities[index.KindTactic],
		"mitigations", d.Entities[index.KindMitigation],
		"detections", d.Entities[index.KindDetection],
		"relationships", d.Relationships,
		"skipped", d.Skipped,
		"inactive", d.Inactive,
		"duplicates", d.Duplicates,
	)
	if d.Undecodable > 0 || d.DanglingRefs > 0 {
		logger.Warn("dataset has unusable entries",
			"source", source,
			"undecodable", d.Undecodable,
			"dangling_refs", d.DanglingRefs,
		)
	}

	return &KB{
		engine:   engine,
		source:   source,
		loadedAt: time.Now(),
		logger:   logger,
	}, nil
}

// Engine returns the query engine.
func (kb *KB) Engine() *query.Engine {
	return kb.engine
}

// Index returns the underlying index.
func (kb *KB) Index() *index.Index {
	return kb.engine.Index()
}

// Diagnostics returns what the index builder kept and dropped.
func (kb *KB) Diagnostics() index.Diagnostics {
	return kb.engine.Index().Diagnostics()
}

// Source identifies where the dataset was read from.
func (kb *KB) Source() string {
	return kb.source
}

// LoadedAt returns when the index was built.
func (kb *KB) LoadedAt() time.Time {
	return kb.loadedAt
}

// Health reports whether the index can serve queries.
func (kb *KB) Health() types.HealthStatus {
	return health.IndexCheck(kb.engine.Index())
}

// Tools returns the knowledge-base tools backed by this KB.
func (kb *KB) Tools(opts ...toolset.Option) (*tool.Registry, error) {
	return toolset.New(kb.engine, opts...)
}

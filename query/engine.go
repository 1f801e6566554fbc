package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/attack-kb/index"
	"github.com/zero-day-ai/attack-kb/kberr"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Operation names used in errors, spans and metric attributes.
const (
	OpResolveByID         = "query.ResolveByID"
	OpFuzzyResolveByName  = "query.FuzzyResolveByName"
	OpListRelationships   = "query.ListRelationships"
	OpListTactics         = "query.ListTactics"
	OpTechniquesForTactic = "query.TechniquesForTactic"
	OpResolve             = "query.Resolve"
)

// maxParentDepth bounds the parent chain walk.
const maxParentDepth = 8

// Option configures an Engine.
type Option func(*Engine)

// WithTracer records a span per operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithMeter records query metrics with meter.
func WithMeter(meter metric.Meter) Option {
	return func(e *Engine) {
		e.meter = meter
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine runs read-only queries against an Index.
type Engine struct {
	idx *index.Index

	tracer  trace.Tracer
	meter   metric.Meter
	metrics *otelMetrics
	logger  *slog.Logger
}

// New creates an Engine over idx.
func New(idx *index.Index, opts ...Option) (*Engine, error) {
	if idx == nil {
		return nil, kberr.InvalidArgument("query.New", "index is nil")
	}

	e := &Engine{
		idx:    idx,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	metrics, err := e.initOTelMetrics()
	if err != nil {
		return nil, fmt.Errorf("query: init metrics: %w", err)
	}
	e.metrics = metrics

	return e, nil
}

// Index returns the index the engine reads from.
func (e *Engine) Index() *index.Index {
	return e.idx
}

// ResolveByID returns the technique with the given ID.
func (e *Engine) ResolveByID(ctx context.Context, id string) (t *Technique, err error) {
	_, done := e.observe(ctx, OpResolveByID)
	defer func() { done(boolCount(t != nil), err) }()

	if strings.TrimSpace(id) == "" {
		return nil, kberr.InvalidArgument(OpResolveByID, "technique ID is empty")
	}

	entity, ok := e.idx.Get(index.KindTechnique, id)
	if !ok {
		return nil, kberr.NotFound(OpResolveByID, id)
	}
	return e.technique(entity), nil
}

// FuzzyResolveByName returns the techniques whose normalized name contains
// the normalized fragment. Exact name matches come first, followed by the
// remaining matches in dataset order. No match is an empty result.
func (e *Engine) FuzzyResolveByName(ctx context.Context, fragment string) (results []Technique, err error) {
	ctx, done := e.observe(ctx, OpFuzzyResolveByName)
	defer func() { done(len(results), err) }()

	needle := index.Normalize(fragment)
	if needle == "" {
		return nil, kberr.InvalidArgument(OpFuzzyResolveByName, "name fragment is empty")
	}

	var exact, partial []*index.Entity
	e.idx.ScanNames(index.KindTechnique, func(name string, entity *index.Entity) bool {
		switch {
		case name == needle:
			exact = append(exact, entity)
		case strings.Contains(name, needle):
			partial = append(partial, entity)
		}
		return true
	})

	results = make([]Technique, 0, len(exact)+len(partial))
	for _, entity := range exact {
		results = append(results, *e.technique(entity))
	}
	for _, entity := range partial {
		results = append(results, *e.technique(entity))
	}

	e.logger.DebugContext(ctx, "name search",
		"fragment", needle,
		"exact", len(exact),
		"partial", len(partial),
	)
	return results, nil
}

// ListRelationships returns the entities related to a technique through
// rel, which must be index.RelMitigation or index.RelDetection.
func (e *Engine) ListRelationships(ctx context.Context, techniqueID string, rel index.RelationKind) (results []Related, err error) {
	_, done := e.observe(ctx, OpListRelationships)
	defer func() { done(len(results), err) }()

	if rel != index.RelMitigation && rel != index.RelDetection {
		return nil, kberr.InvalidArgument(OpListRelationships, fmt.Sprintf("unsupported relation kind %q", rel))
	}

	technique, ok := e.idx.Get(index.KindTechnique, techniqueID)
	if !ok {
		return nil, kberr.NotFound(OpListRelationships, techniqueID)
	}

	related := e.idx.Related(technique.ID, rel)
	results = make([]Related, 0, len(related))
	for _, entity := range related {
		results = append(results, toRelated(entity))
	}
	return results, nil
}

// Mitigations is ListRelationships with index.RelMitigation.
func (e *Engine) Mitigations(ctx context.Context, techniqueID string) ([]Related, error) {
	return e.ListRelationships(ctx, techniqueID, index.RelMitigation)
}

// Detections is ListRelationships with index.RelDetection.
func (e *Engine) Detections(ctx context.Context, techniqueID string) ([]Related, error) {
	return e.ListRelationships(ctx, techniqueID, index.RelDetection)
}

// ListTactics returns every tactic in dataset order.
func (e *Engine) ListTactics(ctx context.Context) []Tactic {
	_, done := e.observe(ctx, OpListTactics)

	entities := e.idx.Entities(index.KindTactic)
	tactics := make([]Tactic, 0, len(entities))
	for _, entity := range entities {
		tactics = append(tactics, toTactic(entity))
	}

	done(len(tactics), nil)
	return tactics
}

// TechniquesForTactic resolves a tactic and returns it with the techniques,
// sub-techniques included, that belong to it.
func (e *Engine) TechniquesForTactic(ctx context.Context, tacticID string) (tactic Tactic, refs []Ref, err error) {
	_, done := e.observe(ctx, OpTechniquesForTactic)
	defer func() { done(len(refs), err) }()

	entity, ok := e.idx.Get(index.KindTactic, tacticID)
	if !ok {
		return Tactic{}, nil, kberr.NotFound(OpTechniquesForTactic, tacticID)
	}
	return toTactic(entity), toRefs(e.idx.Related(entity.ID, index.RelTechnique)), nil
}

// Result is the outcome of Resolve: a single technique for an ID lookup, or
// the matches of a name search.
type Result struct {
	Technique *Technique
	Matches   []Technique
}

// Resolve looks a technique up by ID when techniqueID is set and searches by
// name otherwise. At least one of the two is required.
func (e *Engine) Resolve(ctx context.Context, techniqueID, name string) (*Result, error) {
	switch {
	case strings.TrimSpace(techniqueID) != "":
		t, err := e.ResolveByID(ctx, techniqueID)
		if err != nil {
			return nil, err
		}
		return &Result{Technique: t}, nil
	case strings.TrimSpace(name) != "":
		matches, err := e.FuzzyResolveByName(ctx, name)
		if err != nil {
			return nil, err
		}
		return &Result{Matches: matches}, nil
	default:
		return nil, kberr.InvalidArgument(OpResolve, "technique ID or name is required")
	}
}

// technique projects an entity into a full record.
func (e *Engine) technique(entity *index.Entity) *Technique {
	t := &Technique{
		ID:             entity.ID,
		Name:           entity.Name,
		Description:    entity.Description,
		IsSubtechnique: entity.IsSubtechnique || entity.ParentID != "",
		Platforms:      cloneStrings(entity.Platforms),
		KillChain:      cloneStrings(entity.KillChainPhases),
		Tactics:        toRefs(e.idx.Related(entity.ID, index.RelTactic)),
		Detection:      entity.Detection,
		References:     make([]Reference, 0, len(entity.References)),
	}

	for _, ref := range entity.References {
		t.References = append(t.References, Reference{
			Source:     ref.SourceName,
			ExternalID: ref.ExternalID,
			URL:        ref.URL,
		})
	}

	if subs := e.idx.Related(entity.ID, index.RelSubtechnique); len(subs) > 0 {
		t.Subtechniques = toRefs(subs)
	}

	parentID := entity.ParentID
	for i := 0; parentID != "" && i < maxParentDepth; i++ {
		parent, ok := e.idx.Get(index.KindTechnique, parentID)
		if !ok || parent.ID == entity.ID {
			break
		}
		t.Parents = append(t.Parents, toRef(parent))
		parentID = parent.ParentID
	}

	return t
}

func boolCount(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

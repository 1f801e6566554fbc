// Package toolset exposes the query engine as named tools.
//
//	query_technique          technique_id or tech_name
//	query_mitigations        technique_id
//	query_detections         technique_id
//	list_tactics
//	query_tactic_techniques  tactic_id
//
// List results are wrapped as {"results": [...], "count": n}.
package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/zero-day-ai/attack-kb/health"
	"github.com/zero-day-ai/attack-kb/query"
	"github.com/zero-day-ai/attack-kb/schema"
	"github.com/zero-day-ai/attack-kb/tool"
	"github.com/zero-day-ai/attack-kb/types"
)

// Tool names.
const (
	QueryTechnique        = "query_technique"
	QueryMitigations      = "query_mitigations"
	QueryDetections       = "query_detections"
	ListTactics           = "list_tactics"
	QueryTacticTechniques = "query_tactic_techniques"
)

// Version is reported by every tool in the set.
const Version = "2.1.0"

// SummaryLength is the number of description characters kept in name
// search results.
const SummaryLength = 150

var tags = []string{"mitre-attack", "knowledge-base"}

// Option configures the tool set.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for per-call logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// set binds the tools to an engine.
type set struct {
	engine *query.Engine
	logger *slog.Logger
}

// New returns a registry holding every tool, backed by engine.
func New(engine *query.Engine, opts ...Option) (*tool.Registry, error) {
	tools, err := Tools(engine, opts...)
	if err != nil {
		return nil, err
	}
	return tool.NewRegistry(tools...)
}

// Tools builds the tools backed by engine, in a stable order.
func Tools(engine *query.Engine, opts ...Option) ([]tool.Tool, error) {
	if engine == nil {
		return nil, fmt.Errorf("toolset: engine cannot be nil")
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	s := &set{engine: engine, logger: o.logger.With("component", "toolset")}

	configs := []*tool.Config{
		s.queryTechnique(),
		s.queryMitigations(),
		s.queryDetections(),
		s.listTactics(),
		s.queryTacticTechniques(),
	}

	tools := make([]tool.Tool, 0, len(configs))
	for _, cfg := range configs {
		t, err := tool.New(cfg.
			SetVersion(Version).
			SetTags(tags).
			SetHealthFunc(s.health))
		if err != nil {
			return nil, fmt.Errorf("toolset: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}

func (s *set) health(ctx context.Context) types.HealthStatus {
	return health.IndexCheck(s.engine.Index())
}

func (s *set) logResult(ctx context.Context, name string, count int, args ...any) {
	s.logger.InfoContext(ctx, "tool call", append([]any{"tool", name, "count", count}, args...)...)
}

// toMap converts a result value into plain JSON values.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

// listResult wraps items as {"results": items, "count": len(items)}.
func listResult[T any](items []T) (map[string]any, error) {
	if items == nil {
		items = []T{}
	}
	return toMap(struct {
		Results []T `json:"results"`
		Count   int `json:"count"`
	}{Results: items, Count: len(items)})
}

// listSchema describes a listResult of item.
func listSchema(item schema.JSON, extra map[string]schema.JSON) schema.JSON {
	props := map[string]schema.JSON{
		"results": schema.Array(item),
		"count":   schema.Int(),
	}
	for k, v := range extra {
		props[k] = v
	}
	return schema.Object(props, "results", "count")
}

// summarize cuts s to SummaryLength characters, marking the cut with "...".
func summarize(s string) string {
	if utf8.RuneCountInString(s) <= SummaryLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:SummaryLength]) + "..."
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

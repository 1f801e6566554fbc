// Package query answers read-only questions against an index.Index.
//
// An Engine exposes the knowledge-base operations:
//
//   - ResolveByID: exact technique lookup, with the parent chain resolved
//   - FuzzyResolveByName: case and whitespace insensitive substring search
//     over technique names, exact matches first
//   - ListRelationships: mitigations or detections of a technique
//   - ListTactics: every tactic in dataset order
//   - TechniquesForTactic: the techniques that belong to a tactic
//
// The Engine holds no mutable state, so a single Engine can serve any number
// of concurrent callers. Misses are reported as kberr.ErrNotFound and bad
// arguments as kberr.ErrInvalidArgument; an empty search result is not an
// error.
//
// # Observability
//
// WithTracer and WithMeter attach OpenTelemetry instrumentation. Each
// operation then records a span and the attackkb.query.count,
// attackkb.query.duration and attackkb.query.results instruments, tagged
// with the operation name and outcome.
package query

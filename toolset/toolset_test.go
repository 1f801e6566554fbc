package toolset

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/attack-kb/index"
	"github.com/zero-day-ai/attack-kb/query"
	"github.com/zero-day-ai/attack-kb/stix/stixtest"
	"github.com/zero-day-ai/attack-kb/tool"
	"github.com/zero-day-ai/attack-kb/toolerr"
)

func newRegistry(t *testing.T, opts ...Option) *tool.Registry {
	t.Helper()

	idx, err := index.Build(stixtest.MiniBundle())
	require.NoError(t, err)
	engine, err := query.New(idx)
	require.NoError(t, err)

	r, err := New(engine, opts...)
	require.NoError(t, err)
	return r
}

func ids(t *testing.T, out map[string]any) []string {
	t.Helper()
	results, ok := out["results"].([]any)
	require.True(t, ok, "results is %T", out["results"])

	got := make([]string, 0, len(results))
	for _, r := range results {
		got = append(got, r.(map[string]any)["id"].(string))
	}
	return got
}

func toolError(t *testing.T, err error) *toolerr.Error {
	t.Helper()
	var te *toolerr.Error
	require.True(t, errors.As(err, &te), "expected *toolerr.Error, got %v", err)
	return te
}

func TestNew_NilEngine(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestToolNames(t *testing.T) {
	r := newRegistry(t)

	var names []string
	for _, d := range r.Descriptors() {
		names = append(names, d.Name)
		assert.Equal(t, Version, d.Version)
		assert.NotEmpty(t, d.Description)
		assert.Equal(t, "object", d.InputSchema.Type)
	}
	assert.Equal(t, []string{QueryTechnique, QueryMitigations, QueryDetections, ListTactics, QueryTacticTechniques}, names)
}

func TestQueryTechnique_ByID(t *testing.T) {
	r := newRegistry(t)

	out, err := r.Execute(context.Background(), QueryTechnique, map[string]any{"technique_id": "t1059.001"})
	require.NoError(t, err)

	assert.Equal(t, "T1059.001", out["id"])
	assert.Equal(t, "AppleScript", out["name"])
	assert.Equal(t, []any{"macOS"}, out["platforms"])
	assert.Equal(t, []any{"execution"}, out["kill_chain"])
	assert.Equal(t, []any{map[string]any{"id": "T1059", "name": "Command and Scripting Interpreter"}}, out["parents"])

	refs := out["references"].([]any)
	require.Len(t, refs, 1)
	assert.Equal(t, "mitre-attack", refs[0].(map[string]any)["source"])
}

func TestQueryTechnique_Subtechniques(t *testing.T) {
	r := newRegistry(t)

	out, err := r.Execute(context.Background(), QueryTechnique, map[string]any{"technique_id": "T1566"})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": "T1566.001", "name": "Spearphishing Attachment"}}, out["subtechniques"])
	assert.NotContains(t, out, "parents")
}

func TestQueryTechnique_ByName(t *testing.T) {
	r := newRegistry(t)

	out, err := r.Execute(context.Background(), QueryTechnique, map[string]any{"tech_name": "  Phishing "})
	require.NoError(t, err)

	assert.Equal(t, []string{"T1566", "T1598", "T1566.001"}, ids(t, out))
	assert.Equal(t, float64(3), out["count"])

	first := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "Adversaries may send phishing messages to gain access to victim systems.", first["description"])
}

func TestQueryTechnique_NoMatchesIsSuccess(t *testing.T) {
	r := newRegistry(t)

	out, err := r.Execute(context.Background(), QueryTechnique, map[string]any{"tech_name": "zzz"})
	require.NoError(t, err)
	assert.Equal(t, []any{}, out["results"])
	assert.Equal(t, float64(0), out["count"])
}

func TestQueryTechnique_Errors(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input map[string]any
		code  string
	}{
		{"neither argument", map[string]any{}, toolerr.ErrCodeInvalidInput},
		{"blank name", map[string]any{"tech_name": "   "}, toolerr.ErrCodeInvalidInput},
		{"empty id", map[string]any{"technique_id": ""}, toolerr.ErrCodeInvalidInput},
		{"wrong type", map[string]any{"technique_id": 1059}, toolerr.ErrCodeInvalidInput},
		{"unknown argument", map[string]any{"id": "T1059"}, toolerr.ErrCodeInvalidInput},
		{"unknown id", map[string]any{"technique_id": "T9999.999"}, toolerr.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(ctx, QueryTechnique, tt.input)
			te := toolError(t, err)
			assert.Equal(t, tt.code, te.Code)
			assert.Equal(t, QueryTechnique, te.Tool)
		})
	}
}

func TestQueryTechnique_NotFoundHints(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Execute(context.Background(), QueryTechnique, map[string]any{"technique_id": "T9999"})
	te := toolError(t, err)
	assert.Equal(t, "T9999 not found", te.Message)
	assert.Equal(t, toolerr.ErrorClassPermanent, te.Class)
	require.NotEmpty(t, te.Hints)
	assert.Equal(t, toolerr.StrategyModifyParams, te.Hints[0].Strategy)
}

func TestQueryMitigations(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	out, err := r.Execute(ctx, QueryMitigations, map[string]any{"technique_id": "T1059.001"})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{
		"id":          "M1038",
		"name":        "Execution Prevention",
		"description": "Block execution of code on a system through application control.",
	}}, out["results"])
	assert.Equal(t, float64(1), out["count"])

	out, err = r.Execute(ctx, QueryMitigations, map[string]any{"technique_id": "T1598"})
	require.NoError(t, err)
	assert.Equal(t, float64(0), out["count"])

	_, err = r.Execute(ctx, QueryMitigations, map[string]any{"technique_id": "T9999"})
	te := toolError(t, err)
	assert.Equal(t, toolerr.ErrCodeNotFound, te.Code)
	require.NotEmpty(t, te.Hints)
	assert.Equal(t, QueryTechnique, te.Hints[0].Alternative)

	_, err = r.Execute(ctx, QueryMitigations, map[string]any{})
	assert.Equal(t, toolerr.ErrCodeInvalidInput, toolError(t, err).Code)
}

func TestQueryDetections(t *testing.T) {
	r := newRegistry(t)

	out, err := r.Execute(context.Background(), QueryDetections, map[string]any{"technique_id": "T1059.001"})
	require.NoError(t, err)

	assert.Equal(t, []string{"DC0029", stixtest.DetectionProcessCreation}, ids(t, out))
	results := out["results"].([]any)
	assert.Equal(t, "mitre-attack", results[0].(map[string]any)["source"])
	assert.Equal(t, "", results[1].(map[string]any)["source"])
}

func TestListTactics(t *testing.T) {
	r := newRegistry(t)

	out, err := r.Execute(context.Background(), ListTactics, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"TA0001", "TA0002", "TA0003"}, ids(t, out))
	assert.Equal(t, float64(3), out["count"])

	first := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "Initial Access", first["name"])
	assert.Equal(t, "The adversary is trying to get into your network.", first["description"])

	_, err = r.Execute(context.Background(), ListTactics, map[string]any{"verbose": true})
	assert.Equal(t, toolerr.ErrCodeInvalidInput, toolError(t, err).Code)
}

func TestQueryTacticTechniques(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	out, err := r.Execute(ctx, QueryTacticTechniques, map[string]any{"tactic_id": "TA0002"})
	require.NoError(t, err)
	assert.Equal(t, []string{"T1059", "T1059.001"}, ids(t, out))
	assert.Equal(t, "TA0002", out["tactic_id"])

	out, err = r.Execute(ctx, QueryTacticTechniques, map[string]any{"tactic_id": " ta0002 "})
	require.NoError(t, err)
	assert.Equal(t, "TA0002", out["tactic_id"])
	assert.Equal(t, []string{"T1059", "T1059.001"}, ids(t, out))

	_, err = r.Execute(ctx, QueryTacticTechniques, map[string]any{"tactic_id": "TA0099"})
	te := toolError(t, err)
	assert.Equal(t, toolerr.ErrCodeNotFound, te.Code)
	assert.Equal(t, ListTactics, te.Hints[0].Alternative)
}

func TestHealth(t *testing.T) {
	r := newRegistry(t)

	for _, tl := range r.Tools() {
		status := tl.Health(context.Background())
		assert.True(t, status.Serving(), "%s: %s", tl.Name(), status.Message)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newRegistry(t, WithLogger(logger))

	_, err := r.Execute(context.Background(), QueryMitigations, map[string]any{"technique_id": "T1566.001"})
	require.NoError(t, err)

	line := buf.String()
	assert.Contains(t, line, `"tool":"query_mitigations"`)
	assert.Contains(t, line, `"count":2`)
	assert.Contains(t, line, `"component":"toolset"`)
}

func TestSummarize(t *testing.T) {
	short := "Adversaries may abuse AppleScript."
	assert.Equal(t, short, summarize(short))

	long := strings.Repeat("a", SummaryLength+10)
	got := summarize(long)
	assert.Equal(t, strings.Repeat("a", SummaryLength)+"...", got)

	exact := strings.Repeat("é", SummaryLength)
	assert.Equal(t, exact, summarize(exact))

	multibyte := strings.Repeat("é", SummaryLength+1)
	assert.Equal(t, strings.Repeat("é", SummaryLength)+"...", summarize(multibyte))
}

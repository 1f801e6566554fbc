package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	attackkb "github.com/zero-day-ai/attack-kb"
	"github.com/zero-day-ai/attack-kb/stix/stixtest"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI with an isolated environment.
func run(t *testing.T, env map[string]string, stdin string, args ...string) result {
	t.Helper()
	return runContext(context.Background(), env, stdin, args...)
}

func runContext(ctx context.Context, env map[string]string, stdin string, args ...string) result {
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)
	a.lookup = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// fixture writes the mini bundle and a config that points at it, and
// returns the config path.
func fixture(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.json"), []byte(stixtest.MiniJSON), 0o644))
	cfg := "dataset:\n  path: bundle.json\nlog:\n  level: error\n"
	path := filepath.Join(dir, "attack-kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func emptyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "attack-kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))
	return path
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m), "output: %s", s)
	return m
}

func ids(t *testing.T, out map[string]any) []string {
	t.Helper()

	results, ok := out["results"].([]any)
	require.True(t, ok, "results missing: %v", out)
	var got []string
	for _, r := range results {
		got = append(got, r.(map[string]any)["id"].(string))
	}
	return got
}

func TestTechnique_ByID(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "technique", "t1059.001")
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, stixtest.TechniqueAppleScript, out["id"])
	assert.Equal(t, "AppleScript", out["name"])
	assert.Equal(t, true, out["is_subtechnique"])

	tactics := out["tactics"].([]any)
	require.Len(t, tactics, 1)
	assert.Equal(t, stixtest.TacticExecution, tactics[0].(map[string]any)["id"])
}

func TestTechnique_ByName(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "technique", "--name", "phishing")
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, float64(3), out["count"])
}

func TestTechnique_NotFound(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "technique", "T9999")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, attackkb.ErrNotFound)
	assert.Empty(t, res.stdout)
}

func TestTechnique_NoArguments(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "technique")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "technique ID or --name is required")
}

func TestMitigations(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "mitigations", stixtest.TechniqueSpearAttach)
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, []string{stixtest.MitigationTraining, stixtest.MitigationAntivirus}, ids(t, out))
}

func TestDetections(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "detections", stixtest.TechniqueAppleScript)
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, float64(2), out["count"])
}

func TestTactics(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "tactics")
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, float64(3), out["count"])
}

func TestTacticTechniques(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "tactic-techniques", stixtest.TacticExecution)
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Contains(t, ids(t, out), stixtest.TechniqueAppleScript)
}

func TestDatasetRequired(t *testing.T) {
	res := run(t, nil, "", "--config", emptyConfig(t), "tactics")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "dataset.path")
}

func TestDatasetFromEnvironment(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(bundle, []byte(stixtest.MiniJSON), 0o644))

	env := map[string]string{"ATTACKKB_DATASET_PATH": bundle}
	res := run(t, env, "", "--config", emptyConfig(t), "tactics")
	require.NoError(t, res.err)
	assert.Equal(t, float64(3), decode(t, res.stdout)["count"])
}

func TestDatasetFlagOverridesConfig(t *testing.T) {
	env := map[string]string{"ATTACKKB_DATASET_PATH": "/does/not/exist.json"}
	cfg := fixture(t)
	bundle := filepath.Join(filepath.Dir(cfg), "bundle.json")

	res := run(t, env, "", "--config", cfg, "--dataset", bundle, "tactics")
	require.NoError(t, res.err)
}

func TestMissingConfigFile(t *testing.T) {
	res := run(t, nil, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "tactics")
	require.Error(t, res.err)
}

func TestInactiveFlag(t *testing.T) {
	cfg := fixture(t)

	res := run(t, nil, "", "--config", cfg, "technique", stixtest.TechniqueRevoked)
	require.Error(t, res.err)

	res = run(t, nil, "", "--config", cfg, "--include-inactive", "technique", stixtest.TechniqueRevoked)
	require.NoError(t, res.err)
	assert.Equal(t, stixtest.TechniqueRevoked, decode(t, res.stdout)["id"])
}

func TestSchema_NoDataset(t *testing.T) {
	res := run(t, nil, "", "--config", emptyConfig(t), "schema")
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, float64(5), out["count"])

	var names []string
	for _, d := range out["tools"].([]any) {
		names = append(names, d.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{
		"query_technique",
		"query_mitigations",
		"query_detections",
		"list_tactics",
		"query_tactic_techniques",
	}, names)
}

func TestDatasetStats(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "dataset", "stats")
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, float64(5), out["techniques"])
	assert.Equal(t, float64(3), out["tactics"])
	assert.Equal(t, float64(1), out["undecodable"])
	assert.Equal(t, float64(4), out["dangling_refs"])
}

func TestDatasetPush_ThenQueryFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	redisURL := fmt.Sprintf("redis://%s", mr.Addr())
	cfg := fixture(t)
	bundle := filepath.Join(filepath.Dir(cfg), "bundle.json")

	res := run(t, nil, "", "--config", cfg, "--redis-url", redisURL, "dataset", "push", "--key", "kb:test", bundle)
	require.NoError(t, res.err)
	out := decode(t, res.stdout)
	assert.Equal(t, "kb:test", out["key"])

	stored, err := mr.Get("kb:test")
	require.NoError(t, err)
	assert.Equal(t, stixtest.MiniJSON, stored)

	env := map[string]string{"ATTACKKB_DATASET_REDIS_KEY": "kb:test"}
	res = run(t, env, "", "--config", emptyConfig(t), "--redis-url", redisURL, "mitigations", stixtest.TechniqueAppleScript)
	require.NoError(t, res.err)
	assert.Equal(t, []string{stixtest.MitigationExecPrev}, ids(t, decode(t, res.stdout)))
}

func TestDatasetPush_RequiresRedis(t *testing.T) {
	cfg := fixture(t)
	bundle := filepath.Join(filepath.Dir(cfg), "bundle.json")

	res := run(t, nil, "", "--config", cfg, "dataset", "push", bundle)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Redis URL is required")
}

func TestDatasetPush_RejectsBadBundle(t *testing.T) {
	mr := miniredis.RunT(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1, 2, 3]`), 0o644))

	res := run(t, nil, "", "--config", emptyConfig(t), "--redis-url", "redis://"+mr.Addr(), "dataset", "push", bad)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, attackkb.ErrDatasetMalformed)
	assert.Empty(t, mr.Keys())
}

func TestStdio(t *testing.T) {
	stdin := strings.Join([]string{
		`{"id":"1","tool":"query_technique","arguments":{"technique_id":"T1059.001"}}`,
		`{"id":"2","tool":"query_mitigations","arguments":{"technique_id":"T9999"}}`,
		`{"id":"3","method":"list_tools"}`,
	}, "\n")

	res := run(t, nil, stdin, "--config", fixture(t), "stdio")
	require.NoError(t, res.err)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)

	first := decode(t, lines[0])
	assert.Equal(t, "1", first["id"])
	assert.Equal(t, "AppleScript", first["result"].(map[string]any)["name"])

	second := decode(t, lines[1])
	assert.Equal(t, "NOT_FOUND", second["error"].(map[string]any)["code"])

	third := decode(t, lines[2])
	assert.Len(t, third["tools"], 5)
}

func TestHealth(t *testing.T) {
	res := run(t, nil, "", "--config", fixture(t), "health")
	require.NoError(t, res.err)

	out := decode(t, res.stdout)
	assert.Equal(t, "degraded", out["status"])
}

func TestHealth_MissingDataset(t *testing.T) {
	cfg := emptyConfig(t)
	env := map[string]string{"ATTACKKB_DATASET_PATH": filepath.Join(t.TempDir(), "missing.json")}

	res := run(t, env, "", "--config", cfg, "health")
	require.Error(t, res.err)
	assert.Equal(t, "unhealthy", decode(t, res.stdout)["status"])
}

func TestInstances_NoRegistry(t *testing.T) {
	res := run(t, nil, "", "--config", emptyConfig(t), "instances")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "ATTACKKB_REGISTRY_ENDPOINTS")
}

func TestTelemetryFlag(t *testing.T) {
	cfg := fixture(t)
	res := run(t, nil, "", "--config", cfg, "--telemetry", "--log-level", "debug", "tactics")
	require.NoError(t, res.err)

	assert.Contains(t, res.stderr, "span")
	assert.Contains(t, res.stderr, "attackkb.query.count")
}

func TestVersion(t *testing.T) {
	res := run(t, nil, "", "--version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, version)
}

func TestQueue_WorkerAndCall(t *testing.T) {
	mr := miniredis.RunT(t)
	env := map[string]string{"ATTACKKB_QUEUE_URL": "redis://" + mr.Addr()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan result, 1)
	cfg := fixture(t)
	go func() {
		done <- runContext(ctx, env, "", "--config", cfg, "queue", "worker")
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case res := <-done:
			assert.NoError(t, res.err)
		case <-time.After(10 * time.Second):
			t.Error("worker did not stop")
		}
	})

	require.Eventually(t, func() bool {
		return mr.Exists("attackkb:tool:query_tactic_techniques:workers")
	}, 5*time.Second, 20*time.Millisecond)

	res := run(t, env, "", "--config", emptyConfig(t), "queue", "call", "query_technique", `{"technique_id": "T1059.001"}`)
	require.NoError(t, res.err)
	out := decode(t, res.stdout)
	assert.Equal(t, "AppleScript", out["output"].(map[string]any)["name"])

	res = run(t, env, "", "--config", emptyConfig(t), "queue", "call", "query_mitigations", `{"technique_id": "T9999"}`)
	require.Error(t, res.err)
	out = decode(t, res.stdout)
	assert.Equal(t, "NOT_FOUND", out["error"].(map[string]any)["code"])

	res = run(t, env, "", "--config", emptyConfig(t), "queue", "tools")
	require.NoError(t, res.err)
	assert.Equal(t, float64(5), decode(t, res.stdout)["count"])
}

func TestQueue_RequiresURL(t *testing.T) {
	res := run(t, nil, "", "--config", emptyConfig(t), "queue", "tools")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "queue Redis URL is required")
}

func TestQueue_CallBadArguments(t *testing.T) {
	res := run(t, nil, "", "--config", emptyConfig(t), "queue", "call", "list_tactics", "[1]")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "arguments must be a JSON object")
}

package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/attack-kb/toolerr"
	"github.com/zero-day-ai/attack-kb/toolset"
)

func runStdio(t *testing.T, input string, opts ...Option) []Response {
	t.Helper()

	var out bytes.Buffer
	opts = append([]Option{WithLogger(quietLogger)}, opts...)
	require.NoError(t, RunStdio(context.Background(), miniTools(t), strings.NewReader(input), &out, opts...))

	var responses []Response
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp), scanner.Text())
		responses = append(responses, resp)
	}
	require.NoError(t, scanner.Err())
	return responses
}

func TestRunStdio_Requests(t *testing.T) {
	input := strings.Join([]string{
		`{"id": "1", "tool": "query_technique", "arguments": {"technique_id": "T1059.001"}}`,
		``,
		`{"id": "2", "tool": "query_detections", "arguments": {"technique_id": "T1059.001"}}`,
		`{"id": "3", "tool": "list_tactics"}`,
		`{"id": "4", "tool": "query_tactic_techniques", "arguments": {"tactic_id": "TA0002"}}`,
	}, "\n")

	responses := runStdio(t, input)
	require.Len(t, responses, 4)

	for i, resp := range responses {
		assert.Equal(t, string(rune('1'+i)), resp.ID)
		assert.Nil(t, resp.Error, resp.ID)
	}

	assert.Equal(t, "T1059.001", responses[0].Result["id"])
	assert.Equal(t, float64(2), responses[1].Result["count"])
	assert.Equal(t, float64(3), responses[2].Result["count"])
	assert.Equal(t, "TA0002", responses[3].Result["tactic_id"])
}

func TestRunStdio_ListTools(t *testing.T) {
	responses := runStdio(t, `{"method": "list_tools"}`)
	require.Len(t, responses, 1)

	resp := responses[0]
	assert.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Tools, 5)
	assert.Equal(t, toolset.QueryTechnique, resp.Tools[0].Name)
}

func TestRunStdio_Errors(t *testing.T) {
	input := strings.Join([]string{
		`not json`,
		`{"tool": "query_mitigations", "arguments": {"technique_id": "T9999"}}`,
		`{"method": "subscribe"}`,
		`{"tool": "query_technique", "arguments": {"technique_id": "T1059", "extra": true}}`,
	}, "\n")

	responses := runStdio(t, input)
	require.Len(t, responses, 4)

	codes := make([]string, 0, len(responses))
	for _, resp := range responses {
		require.NotNil(t, resp.Error)
		codes = append(codes, resp.Error.Code)
	}
	assert.Equal(t, []string{
		toolerr.ErrCodeInvalidInput,
		toolerr.ErrCodeNotFound,
		toolerr.ErrCodeInvalidInput,
		toolerr.ErrCodeInvalidInput,
	}, codes)
	assert.Contains(t, responses[0].Error.Message, "malformed request")
}

func TestRunStdio_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := RunStdio(ctx, miniTools(t), strings.NewReader(`{"tool": "list_tactics"}`), &out, WithLogger(quietLogger))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.Len())
}

func TestRunStdio_NilTools(t *testing.T) {
	err := RunStdio(context.Background(), nil, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestRunStdio_ReadError(t *testing.T) {
	var out bytes.Buffer
	err := RunStdio(context.Background(), miniTools(t), failingReader{}, &out, WithLogger(quietLogger))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read request")
}

func TestRunStdio_OversizedLine(t *testing.T) {
	huge := `{"id": "1", "tool": "query_technique", "arguments": {"tech_name": "` + strings.Repeat("a", MaxLineBytes) + `"}}`
	input := huge + "\n" + `{"id": "2", "tool": "list_tactics"}` + "\n"

	responses := runStdio(t, input)
	require.Len(t, responses, 2)

	require.NotNil(t, responses[0].Error)
	assert.Equal(t, toolerr.ErrCodeInvalidInput, responses[0].Error.Code)
	assert.Contains(t, responses[0].Error.Message, "request line exceeds")

	assert.Equal(t, "2", responses[1].ID)
	assert.Nil(t, responses[1].Error)
	assert.Equal(t, float64(3), responses[1].Result["count"])
}

func TestRunStdio_LastLineWithoutNewline(t *testing.T) {
	responses := runStdio(t, `{"id": "1", "tool": "list_tactics"}`+"\n"+`{"id": "2", "tool": "list_tactics"}`)
	require.Len(t, responses, 2)
	assert.Equal(t, "2", responses[1].ID)
}

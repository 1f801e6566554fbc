package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/attack-kb/kberr"
	"github.com/zero-day-ai/attack-kb/schema"
	"github.com/zero-day-ai/attack-kb/toolerr"
	"github.com/zero-day-ai/attack-kb/types"
)

func echoConfig() *Config {
	return NewConfig().
		SetName("echo").
		SetVersion("2.0.0").
		SetDescription("Echoes the technique ID").
		SetTags([]string{"test"}).
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"technique_id": schema.String(),
		}, "technique_id").Closed()).
		SetOutputSchema(schema.Object(map[string]schema.JSON{
			"id": schema.String(),
		}, "id")).
		SetExecuteFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
			id := input["technique_id"].(string)
			switch id {
			case "missing":
				return nil, kberr.NotFound("echo", id)
			case "bad-output":
				return map[string]any{"id": 42}, nil
			}
			return map[string]any{"id": id}, nil
		})
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "1.0.0", cfg.version)
	assert.NotNil(t, cfg.tags)
	assert.Empty(t, cfg.tags)
	assert.Equal(t, "object", cfg.inputSchema.Type)
	assert.Equal(t, "object", cfg.outputSchema.Type)
}

func TestNew(t *testing.T) {
	tl, err := New(echoConfig())
	require.NoError(t, err)

	assert.Equal(t, "echo", tl.Name())
	assert.Equal(t, "2.0.0", tl.Version())
	assert.Equal(t, "Echoes the technique ID", tl.Description())
	assert.Equal(t, []string{"test"}, tl.Tags())
	assert.Equal(t, []string{"technique_id"}, tl.InputSchema().Required)
	assert.Equal(t, []string{"id"}, tl.OutputSchema().Required)
}

func TestNew_Errors(t *testing.T) {
	noop := func(ctx context.Context, input map[string]any) (map[string]any, error) { return nil, nil }

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"missing name", NewConfig().SetExecuteFunc(noop)},
		{"missing execute", NewConfig().SetName("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestExecute(t *testing.T) {
	tl, err := New(echoConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		out, err := tl.Execute(ctx, map[string]any{"technique_id": "T1059"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "T1059"}, out)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := tl.Execute(ctx, map[string]any{"technique_id": 1059})
		var te *toolerr.Error
		require.True(t, errors.As(err, &te))
		assert.Equal(t, toolerr.ErrCodeInvalidInput, te.Code)
		assert.Equal(t, OpValidateInput, te.Operation)
		assert.Equal(t, toolerr.ErrorClassSemantic, te.Class)
		assert.Contains(t, te.Message, "technique_id")
	})

	t.Run("nil input is an empty object", func(t *testing.T) {
		_, err := tl.Execute(ctx, nil)
		var te *toolerr.Error
		require.True(t, errors.As(err, &te))
		assert.Equal(t, toolerr.ErrCodeInvalidInput, te.Code)
	})

	t.Run("unknown argument", func(t *testing.T) {
		_, err := tl.Execute(ctx, map[string]any{"technique_id": "T1059", "verbose": true})
		assert.True(t, errors.Is(err, &toolerr.Error{Code: toolerr.ErrCodeInvalidInput}))
	})

	t.Run("execute error is converted", func(t *testing.T) {
		_, err := tl.Execute(ctx, map[string]any{"technique_id": "missing"})
		var te *toolerr.Error
		require.True(t, errors.As(err, &te))
		assert.Equal(t, toolerr.ErrCodeNotFound, te.Code)
		assert.Equal(t, OpExecute, te.Operation)
		assert.True(t, errors.Is(err, kberr.ErrNotFound))
	})

	t.Run("output is validated", func(t *testing.T) {
		_, err := tl.Execute(ctx, map[string]any{"technique_id": "bad-output"})
		var te *toolerr.Error
		require.True(t, errors.As(err, &te))
		assert.Equal(t, toolerr.ErrCodeInternal, te.Code)
		assert.Equal(t, OpValidateOutput, te.Operation)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := tl.Execute(cctx, map[string]any{"technique_id": "T1059"})
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestHealth(t *testing.T) {
	tl, err := New(echoConfig())
	require.NoError(t, err)
	assert.True(t, tl.Health(context.Background()).IsHealthy())

	tl, err = New(echoConfig().SetHealthFunc(func(ctx context.Context) types.HealthStatus {
		return types.NewUnhealthyStatus("index missing", nil)
	}))
	require.NoError(t, err)
	assert.True(t, tl.Health(context.Background()).IsUnhealthy())
}

func TestToDescriptor(t *testing.T) {
	tl, err := New(echoConfig())
	require.NoError(t, err)

	d := ToDescriptor(tl)
	assert.Equal(t, "echo", d.Name)
	assert.Equal(t, "2.0.0", d.Version)
	assert.Equal(t, tl.InputSchema(), d.InputSchema)
	assert.Equal(t, tl.OutputSchema(), d.OutputSchema)
}

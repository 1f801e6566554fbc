package tool

import (
	"context"
	"errors"

	"github.com/zero-day-ai/attack-kb/schema"
	"github.com/zero-day-ai/attack-kb/toolerr"
	"github.com/zero-day-ai/attack-kb/types"
)

// ExecuteFunc implements a tool.
type ExecuteFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// HealthFunc reports the health of a tool.
type HealthFunc func(ctx context.Context) types.HealthStatus

// Operation names used in errors raised by Execute itself.
const (
	OpValidateInput  = "validate_input"
	OpExecute        = "execute"
	OpValidateOutput = "validate_output"
)

// Config holds the configuration for building a Tool.
type Config struct {
	name         string
	version      string
	description  string
	tags         []string
	inputSchema  schema.JSON
	outputSchema schema.JSON
	executeFunc  ExecuteFunc
	healthFunc   HealthFunc
}

// NewConfig creates a Config with version 1.0.0, no tags and schemas that
// accept an empty argument object.
func NewConfig() *Config {
	return &Config{
		version:      "1.0.0",
		tags:         []string{},
		inputSchema:  schema.Object(map[string]schema.JSON{}),
		outputSchema: schema.Object(map[string]schema.JSON{}),
	}
}

// SetName sets the tool name.
func (c *Config) SetName(name string) *Config {
	c.name = name
	return c
}

// SetVersion sets the tool version.
func (c *Config) SetVersion(version string) *Config {
	c.version = version
	return c
}

// SetDescription sets the tool description.
func (c *Config) SetDescription(desc string) *Config {
	c.description = desc
	return c
}

// SetTags sets the tool tags.
func (c *Config) SetTags(tags []string) *Config {
	c.tags = tags
	return c
}

// SetInputSchema sets the argument schema.
func (c *Config) SetInputSchema(s schema.JSON) *Config {
	c.inputSchema = s
	return c
}

// SetOutputSchema sets the result schema.
func (c *Config) SetOutputSchema(s schema.JSON) *Config {
	c.outputSchema = s
	return c
}

// SetExecuteFunc sets the execution function.
func (c *Config) SetExecuteFunc(fn ExecuteFunc) *Config {
	c.executeFunc = fn
	return c
}

// SetHealthFunc sets the health check. Without one the tool always
// reports healthy.
func (c *Config) SetHealthFunc(fn HealthFunc) *Config {
	c.healthFunc = fn
	return c
}

type configuredTool struct {
	name         string
	version      string
	description  string
	tags         []string
	inputSchema  schema.JSON
	outputSchema schema.JSON
	executeFunc  ExecuteFunc
	healthFunc   HealthFunc
}

// New creates a Tool from cfg. The name and the execute function are
// required.
func New(cfg *Config) (Tool, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.name == "" {
		return nil, errors.New("tool name is required")
	}
	if cfg.executeFunc == nil {
		return nil, errors.New("execute function is required")
	}

	return &configuredTool{
		name:         cfg.name,
		version:      cfg.version,
		description:  cfg.description,
		tags:         cfg.tags,
		inputSchema:  cfg.inputSchema,
		outputSchema: cfg.outputSchema,
		executeFunc:  cfg.executeFunc,
		healthFunc:   cfg.healthFunc,
	}, nil
}

func (t *configuredTool) Name() string              { return t.name }
func (t *configuredTool) Version() string           { return t.version }
func (t *configuredTool) Description() string       { return t.description }
func (t *configuredTool) Tags() []string            { return t.tags }
func (t *configuredTool) InputSchema() schema.JSON  { return t.inputSchema }
func (t *configuredTool) OutputSchema() schema.JSON { return t.outputSchema }

// Execute validates input, runs the tool and validates its output. A nil
// input is treated as an empty argument object.
func (t *configuredTool) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if input == nil {
		input = map[string]any{}
	}

	if err := t.inputSchema.Validate(input); err != nil {
		return nil, toolerr.EnrichError(
			toolerr.New(t.name, OpValidateInput, toolerr.ErrCodeInvalidInput, err.Error()).WithCause(err),
		)
	}

	if err := ctx.Err(); err != nil {
		return nil, toolerr.FromError(t.name, OpExecute, err)
	}

	output, err := t.executeFunc(ctx, input)
	if err != nil {
		return nil, toolerr.FromError(t.name, OpExecute, err)
	}

	if err := t.outputSchema.Validate(output); err != nil {
		return nil, toolerr.New(t.name, OpValidateOutput, toolerr.ErrCodeInternal, "result does not match output schema").
			WithCause(err).
			WithClass(toolerr.ErrorClassInfrastructure)
	}

	return output, nil
}

func (t *configuredTool) Health(ctx context.Context) types.HealthStatus {
	if t.healthFunc == nil {
		return types.NewHealthyStatus("tool is operational")
	}
	return t.healthFunc(ctx)
}

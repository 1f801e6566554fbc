package tool

import (
	"context"

	"github.com/zero-day-ai/attack-kb/schema"
	"github.com/zero-day-ai/attack-kb/types"
)

// Tool is a named operation with JSON arguments and a JSON result.
type Tool interface {
	// Name returns the unique identifier of the tool.
	Name() string

	// Version returns the semantic version of the tool.
	Version() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Tags returns labels for grouping tools.
	Tags() []string

	// InputSchema describes the accepted arguments.
	InputSchema() schema.JSON

	// OutputSchema describes the result.
	OutputSchema() schema.JSON

	// Execute runs the tool. Errors are *toolerr.Error values.
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)

	// Health checks whether the tool can currently serve calls.
	Health(ctx context.Context) types.HealthStatus
}

// Descriptor is the metadata of a tool without its behavior.
type Descriptor struct {
	Name         string      `json:"name"`
	Version      string      `json:"version"`
	Description  string      `json:"description"`
	Tags         []string    `json:"tags"`
	InputSchema  schema.JSON `json:"input_schema"`
	OutputSchema schema.JSON `json:"output_schema"`
}

// ToDescriptor extracts the metadata of t.
func ToDescriptor(t Tool) Descriptor {
	return Descriptor{
		Name:         t.Name(),
		Version:      t.Version(),
		Description:  t.Description(),
		Tags:         t.Tags(),
		InputSchema:  t.InputSchema(),
		OutputSchema: t.OutputSchema(),
	}
}

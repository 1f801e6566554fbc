package tool

import (
	"context"
	"fmt"

	"github.com/zero-day-ai/attack-kb/toolerr"
)

// Registry is an ordered set of tools keyed by name. It is not safe for
// concurrent registration; register everything before serving.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if _, exists := r.index[t.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", t.Name())
	}
	r.tools = append(r.tools, t)
	r.index[t.Name()] = t
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Descriptors returns the metadata of every tool in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToDescriptor(t))
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Execute runs the named tool. An unknown name yields an UNKNOWN_TOOL
// error.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	t, ok := r.index[name]
	if !ok {
		return nil, toolerr.EnrichError(
			toolerr.New(name, OpExecute, toolerr.ErrCodeUnknownTool, fmt.Sprintf("no tool named %q", name)),
		)
	}
	return t.Execute(ctx, input)
}

package mcpcore

import (
	"context"
	"errors"
	"fmt"
)

// ToolHandler implements a tool. It receives arguments already validated
// and normalized against the tool's schema. A returned error, like a panic,
// is reported to the caller as error content.
type ToolHandler func(ctx context.Context, args Arguments) (*CallResult, error)

// ToolSpec declares a tool.
type ToolSpec struct {
	Name        string
	Description string
	Params      Schema
	Handler     ToolHandler
}

// ToolRegistry is an ordered catalog of tools keyed by name.
// It is not safe for concurrent mutation; Service guards its own registry
// and sessions only read from snapshots.
type ToolRegistry struct {
	specs []ToolSpec
	index map[string]int
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{index: make(map[string]int)}
}

// Register adds spec to the registry. It fails with *DuplicateNameError if
// the name is taken.
func (r *ToolRegistry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return errors.New("tool name required")
	}
	if spec.Handler == nil {
		return fmt.Errorf("tool %q: handler required", spec.Name)
	}
	if _, ok := r.index[spec.Name]; ok {
		return &DuplicateNameError{Kind: "tool", Name: spec.Name}
	}
	params, err := spec.Params.check()
	if err != nil {
		return fmt.Errorf("tool %q: %w", spec.Name, err)
	}
	spec.Params = params
	r.index[spec.Name] = len(r.specs)
	r.specs = append(r.specs, spec)
	return nil
}

// List returns the tools in registration order.
func (r *ToolRegistry) List() []ToolSpec {
	return append([]ToolSpec(nil), r.specs...)
}

// Get returns the tool named name, or *NotFoundError.
func (r *ToolRegistry) Get(name string) (ToolSpec, error) {
	i, ok := r.index[name]
	if !ok {
		return ToolSpec{}, &NotFoundError{Kind: "tool", Name: name}
	}
	return r.specs[i], nil
}

// Len reports the number of registered tools.
func (r *ToolRegistry) Len() int { return len(r.specs) }

// clone returns an independent copy. Schemas are shared; they are never
// modified after registration.
func (r *ToolRegistry) clone() *ToolRegistry {
	c := &ToolRegistry{
		specs: append([]ToolSpec(nil), r.specs...),
		index: make(map[string]int, len(r.index)),
	}
	for k, v := range r.index {
		c.index[k] = v
	}
	return c
}

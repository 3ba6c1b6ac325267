package tooling

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"shopassist/internal/domain"
)

// ToolRegistry holds SchemaTool implementations keyed by name together with
// their compiled schemas. Arguments are validated here, centrally, so tools
// only ever see input that matches their schema.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]SchemaTool
	schemas map[string]*jsonschema.Schema
}

// NewToolRegistry returns an empty, ready-to-use registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]SchemaTool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool. Returns an error if the tool is nil, its schema does
// not compile, or a tool with the same name is already registered.
func (r *ToolRegistry) Register(tool SchemaTool) error {
	if tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	schema, err := CompileSchema(name, tool.Definition())
	if err != nil {
		return fmt.Errorf("tool %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.tools[name] = tool
	r.schemas[name] = schema
	return nil
}

// Get returns the tool with the given name or ErrUnknownTool.
func (r *ToolRegistry) Get(name string) (SchemaTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool, nil
}

// List returns all registered tools sorted by name.
func (r *ToolRegistry) List() []SchemaTool {
	r.mu.RLock()
	out := make([]SchemaTool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Definitions returns domain.ToolDefinition for every registered tool, sorted
// by name, suitable for passing to the model's function-calling API.
func (r *ToolRegistry) Definitions() []domain.ToolDefinition {
	tools := r.List()
	out := make([]domain.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: json.RawMessage(t.Definition()),
		})
	}
	return out
}

// Validate checks args against the named tool's schema. Failures wrap
// ErrInvalidToolArguments or ErrUnknownTool.
func (r *ToolRegistry) Validate(name string, args json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if err := validateCompiled(schema, args); err != nil {
		return fmt.Errorf("tool %q: %w", name, err)
	}
	return nil
}

// Execute looks up the tool, validates args and only then calls it.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}
	if err := r.Validate(name, args); err != nil {
		return "", err
	}
	return tool.Call(ctx, args)
}

// NewShoppingRegistry registers the product_search and price_calculator tools.
func NewShoppingRegistry(store domain.CatalogStore) (*ToolRegistry, error) {
	reg := NewToolRegistry()
	if err := reg.Register(NewProductSearchTool(store)); err != nil {
		return nil, err
	}
	if err := reg.Register(NewPriceCalculatorTool()); err != nil {
		return nil, err
	}
	return reg, nil
}

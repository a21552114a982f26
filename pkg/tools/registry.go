package tools

import (
	"github.com/jg-phare/gatekeep/pkg/llm"
)

// Registry holds available tools and resolves them by name.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	tools    map[string]Tool
	order    []string        // registration order
	disabled map[string]bool // explicitly disallowed
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDisabled marks tool names as disabled.
func WithDisabled(names ...string) RegistryOption {
	return func(r *Registry) {
		for _, n := range names {
			r.disabled[n] = true
		}
	}
}

// NewRegistry creates a new tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		disabled: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers tools and panics on a duplicate name.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// IsDisabled returns true if the tool is explicitly disallowed.
func (r *Registry) IsDisabled(name string) bool {
	return r.disabled[name]
}

// RequiresConfirmation reports the confirmation flag for name.
func (r *Registry) RequiresConfirmation(name string) (bool, error) {
	t, err := r.Get(name)
	if err != nil {
		return false, err
	}
	return t.RequiresConfirmation(), nil
}

// Names returns the enabled tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			names = append(names, name)
		}
	}
	return names
}

// Validate checks args against the named tool's input schema.
func (r *Registry) Validate(name string, args map[string]any) error {
	t, err := r.Get(name)
	if err != nil {
		return err
	}
	return validateInput(name, args, t.InputSchema())
}

// ToolDefinitions returns OpenAI-format tool definitions for the given names,
// in registry order. Unknown and disabled names are skipped.
func (r *Registry) ToolDefinitions(names []string) []llm.ToolDefinition {
	tools := r.subset(names)
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.InputSchema(),
			},
		})
	}
	return defs
}

// LLMTools returns adapters satisfying llm.Tool for the given names,
// for use with llm.BuildCompletionRequest.
func (r *Registry) LLMTools(names []string) []llm.Tool {
	tools := r.subset(names)
	adapted := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		adapted = append(adapted, &llmToolAdapter{tool: t})
	}
	return adapted
}

func (r *Registry) subset(names []string) []Tool {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]Tool, 0, len(names))
	for _, name := range r.order {
		if want[name] && !r.disabled[name] {
			out = append(out, r.tools[name])
		}
	}
	return out
}

package tools

import "fmt"

// DuplicateToolError is returned by Register when the name is already taken.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tools: tool %q already registered", e.Name)
}

// UnknownToolError is returned when a name does not resolve to a registered tool.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tools: unknown tool %q", e.Name)
}

// ValidationError describes arguments that do not satisfy a tool's schema.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("tools: invalid input for %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("tools: invalid input for %s: field %s: %s", e.Tool, e.Field, e.Reason)
}

// ToolExecutionError wraps a handler failure for a single invocation.
type ToolExecutionError struct {
	Tool       string
	ToolCallID string
	Err        error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tools: %s (%s) failed: %v", e.Tool, e.ToolCallID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

package tools

import (
	"context"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// ToolOutput is the result of a tool execution.
type ToolOutput struct {
	Data    any    // structured payload recorded as the invocation result
	IsError bool   // when true, Message describes a handled failure
	Message string // error text for IsError outputs
}

// Result converts the output to the ToolResult stored on a ToolInvocation.
func (o ToolOutput) Result() types.ToolResult {
	if o.IsError {
		msg := o.Message
		if msg == "" {
			msg = "tool reported an error"
		}
		return types.ErrorResult(msg)
	}
	return types.DataResult(o.Data)
}

// Tool is the interface every tool must implement.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any // JSON Schema object for the tools array

	// RequiresConfirmation marks tools whose handler must not run before the
	// user explicitly assents in a later turn.
	RequiresConfirmation() bool

	Execute(ctx context.Context, input map[string]any) (ToolOutput, error)
}

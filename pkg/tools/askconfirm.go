package tools

import (
	"context"
	"errors"
)

// ConfirmationRequest is the parsed input of an askForConfirmation call.
type ConfirmationRequest struct {
	Message string
	Tool    string
	Args    map[string]any
}

// AskForConfirmationTool asks the user to approve a sensitive action.
// The chat session intercepts calls to it; Execute only runs when the tool is
// used outside a session.
type AskForConfirmationTool struct{}

func (a *AskForConfirmationTool) Name() string { return AskForConfirmationName }

func (a *AskForConfirmationTool) Description() string {
	return `Ask the user to confirm a sensitive action before it runs.
Call this instead of any transfer, swap or scheduling tool. Pass the tool you intend to run and its exact arguments.
After calling this tool, stop and wait for the user's reply. Never call the sensitive tool in the same response.`
}

func (a *AskForConfirmationTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Short summary shown to the user, e.g. 'Send 5 SOL to 7xKX...'",
			},
			"tool": map[string]any{
				"type":        "string",
				"description": "Name of the tool that will run once confirmed",
			},
			"args": map[string]any{
				"type":        "object",
				"description": "Arguments the tool will be called with",
			},
		},
		"required": []string{"message", "tool"},
	}
}

func (a *AskForConfirmationTool) RequiresConfirmation() bool { return false }

func (a *AskForConfirmationTool) Execute(_ context.Context, input map[string]any) (ToolOutput, error) {
	req, err := ParseConfirmationRequest(input)
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	return ToolOutput{Data: map[string]any{
		"status":  "awaiting_confirmation",
		"tool":    req.Tool,
		"message": req.Message,
	}}, nil
}

// ParseConfirmationRequest extracts the pending tool and args from an
// askForConfirmation input.
func ParseConfirmationRequest(input map[string]any) (ConfirmationRequest, error) {
	req := ConfirmationRequest{
		Message: stringArg(input, "message"),
		Tool:    stringArg(input, "tool"),
		Args:    objectArg(input, "args"),
	}
	if req.Tool == "" {
		return req, errors.New("tool is required")
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}
	return req, nil
}

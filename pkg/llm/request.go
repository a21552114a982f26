package llm

import "encoding/json"

// Tool is the interface that tools must implement for request construction.
type Tool interface {
	ToolName() string
	Description() string
	InputSchema() map[string]any
}

// RequestOptions carries per-request settings that are not part of ClientConfig.
type RequestOptions struct {
	User           string          // end-user id forwarded as "user"
	ResponseFormat *ResponseFormat // structured output mode
}

// BuildCompletionRequest assembles a CompletionRequest. A nil or empty tools
// slice sends no tool definitions at all.
func BuildCompletionRequest(config ClientConfig, systemPrompt string, messages []ChatMessage, tools []Tool, opts RequestOptions) *CompletionRequest {
	req := &CompletionRequest{
		Model:          config.Model,
		Stream:         true,
		MaxTokens:      config.MaxTokens,
		Temperature:    config.Temperature,
		StreamOptions:  &StreamOptions{IncludeUsage: true},
		User:           opts.User,
		ResponseFormat: opts.ResponseFormat,
	}

	if systemPrompt != "" {
		req.Messages = append(req.Messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, messages...)

	for _, tool := range tools {
		req.Tools = append(req.Tools, ToolDefinition{
			Type: "function",
			Function: FunctionDef{
				Name:        tool.ToolName(),
				Description: tool.Description(),
				Parameters:  tool.InputSchema(),
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req
}

// StringArraySchema returns a json_schema ResponseFormat whose payload is
// {"items": [...]} with every item drawn from allowed. OpenAI-compatible
// endpoints require an object at the top level, hence the wrapper.
func StringArraySchema(name string, allowed []string) *ResponseFormat {
	items := map[string]any{"type": "string"}
	if len(allowed) > 0 {
		items["enum"] = allowed
	}
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchemaFormat{
			Name:   name,
			Strict: true,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"items": map[string]any{"type": "array", "items": items},
				},
				"required":             []string{"items"},
				"additionalProperties": false,
			},
		},
	}
}

// ToolResult is a tool execution result to send back as a "tool" message.
type ToolResult struct {
	ToolCallID string
	Content    string
}

// ConvertToToolMessages converts tool results to OpenAI "tool" messages.
func ConvertToToolMessages(toolResults []ToolResult) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(toolResults))
	for _, tr := range toolResults {
		msgs = append(msgs, ChatMessage{
			Role:       "tool",
			ToolCallID: tr.ToolCallID,
			Content:    tr.Content,
		})
	}
	return msgs
}

// AssistantMessage renders assistant text and tool calls as an OpenAI assistant message.
func AssistantMessage(text string, uses []ToolUse) ChatMessage {
	cm := ChatMessage{Role: "assistant"}
	if text != "" {
		cm.Content = text
	}
	for _, use := range uses {
		args, _ := json.Marshal(use.Input)
		if use.Input == nil {
			args = []byte("{}")
		}
		cm.ToolCalls = append(cm.ToolCalls, ToolCall{
			ID:   use.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      use.Name,
				Arguments: string(args),
			},
		})
	}
	return cm
}

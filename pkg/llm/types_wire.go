package llm

// CompletionRequest maps to OpenAI /v1/chat/completions request body.
type CompletionRequest struct {
	Model         string           `json:"model"`
	Messages      []ChatMessage    `json:"messages"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	Stream        bool             `json:"stream"`
	MaxTokens     int              `json:"max_tokens,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty"`
	TopP          *float64         `json:"top_p,omitempty"`
	Stop          []string         `json:"stop,omitempty"`
	StreamOptions *StreamOptions   `json:"stream_options,omitempty"`
	ToolChoice    any              `json:"tool_choice,omitempty"` // "auto" | "none" | "required"
	User          string           `json:"user,omitempty"`

	// ResponseFormat requests structured output, see JSONSchemaFormat.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat selects the output mode: "text", "json_object" or "json_schema".
type ResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// JSONSchemaFormat constrains the response to a named JSON Schema.
type JSONSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict,omitempty"`
}

// StreamOptions requests usage info in the final streaming chunk.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is an OpenAI-format message for the messages array.
// Content is nil for an assistant message carrying only tool_calls.
type ChatMessage struct {
	Role       string     `json:"role"`                   // "system"|"user"|"assistant"|"tool"
	Content    any        `json:"content"`                // string | nil
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool result messages only
	Name       string     `json:"name,omitempty"`         // optional sender name
}

// ToolCall represents an assistant's request to invoke a tool.
type ToolCall struct {
	Index    int          `json:"index,omitempty"` // streaming only: identifies which call
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"` // "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and arguments for a tool call.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"` // JSON string, accumulated incrementally
}

// ToolDefinition is an OpenAI-format tool for the tools array.
type ToolDefinition struct {
	Type     string      `json:"type"` // "function"
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a function available as a tool.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema object
}

// StreamChunk represents a single SSE chunk.
type StreamChunk struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"` // "chat.completion.chunk"
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage,omitempty"`              // final chunk only (stream_options)
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
}

// Choice represents a single choice in a streaming chunk.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"` // null | "stop" | "tool_calls" | "length"
}

// Delta is the incremental content in a streaming chunk.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   *string    `json:"content,omitempty"` // nil vs "" matters
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Refusal   *string    `json:"refusal,omitempty"` // structured-output refusal text
}

// Usage from the final streaming chunk or non-streaming response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

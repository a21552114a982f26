package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Stop reasons reported in CompletionResponse.StopReason.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
	StopFiltered  = "content_filter"
)

// ToolUse is a complete tool call with parsed arguments.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
	Raw   string // original arguments string when it was not valid JSON
}

// TokenUsage is the token accounting for one completion.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// CompletionResponse is the accumulated result of a streaming completion.
type CompletionResponse struct {
	ID           string
	Model        string
	Text         string
	Refusal      string
	ToolUses     []ToolUse
	FinishReason string // raw finish_reason: "stop"|"tool_calls"|"length"|"content_filter"
	StopReason   string // one of the Stop* constants, or FinishReason when unrecognized
	Usage        TokenUsage
}

// ErrRefused is returned by DecodeJSON when the model declined to answer.
var ErrRefused = errors.New("llm: model refused the request")

// DecodeJSON unmarshals the response text into v. It is used with a
// json_schema ResponseFormat. Markdown code fences around the payload are
// tolerated.
func (r *CompletionResponse) DecodeJSON(v any) error {
	if r.Refusal != "" {
		return fmt.Errorf("%w: %s", ErrRefused, r.Refusal)
	}
	text := strings.TrimSpace(r.Text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("llm: empty structured response")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("llm: decode structured response: %w", err)
	}
	return nil
}

func translateFinishReason(fr string) string {
	switch fr {
	case "stop":
		return StopEndTurn
	case "tool_calls", "function_call":
		return StopToolUse
	case "length":
		return StopMaxTokens
	case "content_filter":
		return StopFiltered
	default:
		return fr
	}
}

func translateUsage(u *Usage) TokenUsage {
	if u == nil {
		return TokenUsage{}
	}
	return TokenUsage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}

func parseToolUse(tc ToolCall) ToolUse {
	use := ToolUse{ID: tc.ID, Name: tc.Function.Name}
	if tc.Function.Arguments == "" {
		use.Input = map[string]any{}
		return use
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &use.Input); err != nil || use.Input == nil {
		use.Input = map[string]any{}
		use.Raw = tc.Function.Arguments
	}
	return use
}

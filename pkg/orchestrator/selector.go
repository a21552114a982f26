package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jg-phare/gatekeep/pkg/llm"
	"github.com/jg-phare/gatekeep/pkg/prompt"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// DefaultHistoryWindow is how many trailing messages a selector sees.
const DefaultHistoryWindow = 12

// SelectionRequest is the input to a Selector.
type SelectionRequest struct {
	History []types.Message
	Tools   []prompt.ToolSummary // candidates, in registry order
}

// Names returns the candidate tool names.
func (r SelectionRequest) Names() []string {
	names := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		names[i] = t.Name
	}
	return names
}

// Selector infers which candidate tools are relevant to the latest user
// message. It may return names outside the candidates; the Orchestrator
// drops them.
type Selector interface {
	SelectTools(ctx context.Context, req SelectionRequest) ([]string, error)
}

// SelectorFunc adapts a function to a Selector.
type SelectorFunc func(ctx context.Context, req SelectionRequest) ([]string, error)

func (f SelectorFunc) SelectTools(ctx context.Context, req SelectionRequest) ([]string, error) {
	return f(ctx, req)
}

// LLMSelector asks an OpenAI-compatible model for a structured array of
// tool names.
type LLMSelector struct {
	Client        llm.Client
	Model         string      // empty uses the client's model
	Vars          prompt.Vars // Tools is filled per request
	HistoryWindow int         // default DefaultHistoryWindow
}

func (s *LLMSelector) SelectTools(ctx context.Context, req SelectionRequest) ([]string, error) {
	vars := s.Vars
	vars.Tools = req.Tools
	system := prompt.OrchestratorPrompt(vars)

	var msgs []llm.ChatMessage
	for _, m := range window(req.History, s.HistoryWindow) {
		if text := renderForSelection(m); text != "" {
			msgs = append(msgs, llm.ChatMessage{Role: selectionRole(m.Role), Content: text})
		}
	}

	creq := llm.BuildCompletionRequest(llm.ClientConfig{Model: s.Model}, system, msgs, nil, llm.RequestOptions{
		ResponseFormat: llm.StringArraySchema("tool_selection", req.Names()),
	})
	stream, err := s.Client.Complete(ctx, creq)
	if err != nil {
		return nil, err
	}
	resp, err := stream.Accumulate()
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := resp.DecodeJSON(&raw); err != nil {
		return nil, fmt.Errorf("decode tool selection: %w", err)
	}
	return decodeNames(raw)
}

// decodeNames accepts {"items": [...]} or a bare array.
func decodeNames(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("decode tool selection: %w", err)
		}
		return names, nil
	}
	var wrapped struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode tool selection: %w", err)
	}
	return wrapped.Items, nil
}

func window(history []types.Message, n int) []types.Message {
	if n <= 0 {
		n = DefaultHistoryWindow
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

// renderForSelection flattens a message to text. Tool activity is summarized
// by name only; the selector needs intent, not payloads.
func renderForSelection(m types.Message) string {
	if m.Role == types.RoleSystem {
		return ""
	}
	text := strings.TrimSpace(m.Content)
	if len(m.ToolInvocations) == 0 {
		return text
	}
	names := make([]string, len(m.ToolInvocations))
	for i, inv := range m.ToolInvocations {
		names[i] = inv.ToolName
	}
	called := "[called " + strings.Join(names, ", ") + "]"
	if text == "" {
		return called
	}
	return text + "\n" + called
}

func selectionRole(r types.Role) string {
	if r == types.RoleUser {
		return "user"
	}
	return "assistant"
}

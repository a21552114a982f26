package chat

import (
	"encoding/json"

	"github.com/jg-phare/gatekeep/pkg/llm"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// pendingContent stands in for the result of an invocation still in the
// call state, e.g. a confirmation the user has not answered yet.
const pendingContent = `{"status":"pending"}`

// toChatMessages renders history in the wire format. Every assistant tool
// call is followed by one tool message so the sequence is always complete.
func toChatMessages(history []types.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case types.RoleUser:
			out = append(out, llm.ChatMessage{Role: "user", Content: m.Content})
		case types.RoleAssistant:
			if len(m.ToolInvocations) == 0 {
				if m.Content != "" {
					out = append(out, llm.ChatMessage{Role: "assistant", Content: m.Content})
				}
				continue
			}
			uses := make([]llm.ToolUse, len(m.ToolInvocations))
			results := make([]llm.ToolResult, len(m.ToolInvocations))
			for i, inv := range m.ToolInvocations {
				uses[i] = llm.ToolUse{ID: inv.ToolCallID, Name: inv.ToolName, Input: inv.Args}
				results[i] = llm.ToolResult{ToolCallID: inv.ToolCallID, Content: resultContent(inv)}
			}
			out = append(out, llm.AssistantMessage(m.Content, uses))
			out = append(out, llm.ConvertToToolMessages(results)...)
		}
	}
	return out
}

func resultContent(inv types.ToolInvocation) string {
	if !inv.HasResult() {
		return pendingContent
	}
	b, err := json.Marshal(inv.Result)
	if err != nil {
		return `{"error":"result not serializable"}`
	}
	return string(b)
}

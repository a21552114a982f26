package types

import "time"

// Role identifies the participant that produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// InvocationState tracks a tool invocation from call to result.
// The only legal transition is StateCall -> StateResult.
type InvocationState string

const (
	StateCall   InvocationState = "call"
	StateResult InvocationState = "result"
)

// ToolResult is the captured outcome of a tool handler.
// Exactly one of Data or Error is meaningful.
type ToolResult struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// IsError returns true if the handler failed.
func (r ToolResult) IsError() bool { return r.Error != "" }

// ErrorResult builds a ToolResult carrying a failure message.
func ErrorResult(msg string) ToolResult { return ToolResult{Error: msg} }

// DataResult builds a successful ToolResult.
func DataResult(data any) ToolResult { return ToolResult{Data: data} }

// ToolInvocation is one tool call requested by the model.
type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       map[string]any  `json:"args"`
	State      InvocationState `json:"state"`
	Result     *ToolResult     `json:"result,omitempty"`
}

// HasResult returns true once a result has been attached.
func (ti ToolInvocation) HasResult() bool {
	return ti.State == StateResult && ti.Result != nil
}

// Message is a single entry in a conversation's history.
type Message struct {
	ID              string           `json:"id"`
	ConversationID  string           `json:"conversationId"`
	Role            Role             `json:"role"`
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Invocation returns the invocation with the given call id, if present.
func (m *Message) Invocation(toolCallID string) (*ToolInvocation, bool) {
	for i := range m.ToolInvocations {
		if m.ToolInvocations[i].ToolCallID == toolCallID {
			return &m.ToolInvocations[i], true
		}
	}
	return nil, false
}

// AttachResult moves the matching invocation from call to result.
// Attaching is set-once: if the invocation already holds a result, or no
// invocation matches, the message is left untouched and false is returned.
func (m *Message) AttachResult(toolCallID string, result ToolResult) bool {
	inv, ok := m.Invocation(toolCallID)
	if !ok || inv.State == StateResult {
		return false
	}
	r := result
	inv.Result = &r
	inv.State = StateResult
	return true
}

// PendingInvocations returns the invocations still in the call state.
func (m Message) PendingInvocations() []ToolInvocation {
	var out []ToolInvocation
	for _, inv := range m.ToolInvocations {
		if inv.State == StateCall {
			out = append(out, inv)
		}
	}
	return out
}

// Clone returns a deep copy of the message's invocation slice so callers can
// mutate the copy without touching shared history.
func (m Message) Clone() Message {
	c := m
	if m.ToolInvocations != nil {
		c.ToolInvocations = make([]ToolInvocation, len(m.ToolInvocations))
		for i, inv := range m.ToolInvocations {
			c.ToolInvocations[i] = inv
			if inv.Result != nil {
				r := *inv.Result
				c.ToolInvocations[i].Result = &r
			}
			c.ToolInvocations[i].Args = cloneMap(inv.Args)
		}
	}
	return c
}

// AttachResult scans history newest-first for the invocation with toolCallID
// and attaches result to it. It returns the index of the updated message, or
// -1 if nothing matched or the invocation already had a result.
func AttachResult(msgs []Message, toolCallID string, result ToolResult) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if _, ok := msgs[i].Invocation(toolCallID); !ok {
			continue
		}
		if msgs[i].AttachResult(toolCallID, result) {
			return i
		}
		return -1
	}
	return -1
}

// LastUserMessage returns the most recent user message in history.
func LastUserMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// CountUserMessages returns how many user messages history holds.
func CountUserMessages(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

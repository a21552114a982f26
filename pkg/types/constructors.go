package types

import (
	"time"

	"github.com/google/uuid"
)

// NewMessageID returns a fresh message identifier.
func NewMessageID() string { return uuid.New().String() }

// NewToolCallID returns a fresh tool call identifier.
func NewToolCallID() string { return "call_" + uuid.New().String() }

// NewUserMessage creates a user Message with a fresh ID.
func NewUserMessage(conversationID, content string) Message {
	return Message{
		ID:             NewMessageID(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewAssistantMessage creates an assistant Message with a fresh ID.
func NewAssistantMessage(conversationID, content string, invocations []ToolInvocation) Message {
	return Message{
		ID:              NewMessageID(),
		ConversationID:  conversationID,
		Role:            RoleAssistant,
		Content:         content,
		ToolInvocations: invocations,
		CreatedAt:       time.Now().UTC(),
	}
}

// NewCall creates a ToolInvocation in the call state.
func NewCall(toolCallID, toolName string, args map[string]any) ToolInvocation {
	if toolCallID == "" {
		toolCallID = NewToolCallID()
	}
	if args == nil {
		args = map[string]any{}
	}
	return ToolInvocation{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Args:       args,
		State:      StateCall,
	}
}

// NewConversationID returns a fresh conversation identifier.
func NewConversationID() string { return uuid.New().String() }

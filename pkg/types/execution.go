package types

import "time"

// Execution records that a tool handler ran for a toolCallId. A second run
// for the same id replays the recorded result instead of calling the handler.
type Execution struct {
	ConversationID string     `json:"conversationId"`
	ToolCallID     string     `json:"toolCallId"`
	Tool           string     `json:"tool"`
	Result         ToolResult `json:"result"`
	ExecutedAt     time.Time  `json:"executedAt"`
}

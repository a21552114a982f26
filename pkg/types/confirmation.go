package types

import "time"

// ConfirmationState is the lifecycle state of one confirmation request.
type ConfirmationState string

const (
	ConfirmationIdle       ConfirmationState = "idle"
	ConfirmationAwaiting   ConfirmationState = "awaiting_confirmation"
	ConfirmationConfirmed  ConfirmationState = "confirmed"
	ConfirmationRejected   ConfirmationState = "rejected"
	ConfirmationExecuted   ConfirmationState = "executed"
	ConfirmationSuperseded ConfirmationState = "superseded"
)

// Open reports whether the request still blocks a new one.
func (s ConfirmationState) Open() bool {
	return s == ConfirmationAwaiting || s == ConfirmationConfirmed
}

// Confirmation is a sensitive action awaiting, or past, user assent. It is
// keyed by the toolCallId of the askForConfirmation invocation that opened it.
type Confirmation struct {
	ConversationID string            `json:"conversationId"`
	ToolCallID     string            `json:"toolCallId"`
	Tool           string            `json:"tool"`
	Args           map[string]any    `json:"args"`
	Message        string            `json:"message,omitempty"`
	State          ConfirmationState `json:"state"`
	Fingerprint    string            `json:"fingerprint"`
	RequestedTurn  int               `json:"requestedTurn"`
	ResolvedTurn   int               `json:"resolvedTurn,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Clone returns a copy that shares no maps with c.
func (c Confirmation) Clone() Confirmation {
	out := c
	out.Args = cloneMap(c.Args)
	return out
}

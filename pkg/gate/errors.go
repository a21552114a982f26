package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPending is returned when a reply arrives but nothing awaits confirmation.
	ErrNoPending = errors.New("gate: no pending confirmation")

	// ErrAlreadyRejected is returned by Request when the same action was
	// refused and the user has not sent a new message since.
	ErrAlreadyRejected = errors.New("gate: action already rejected")
)

// ConfirmationProtocolViolation is raised when code tries to run a sensitive
// tool without a Confirmed action for its toolCallId. It is fatal to the turn.
type ConfirmationProtocolViolation struct {
	ConversationID string
	ToolCallID     string
	Tool           string
	Reason         string
}

func (e *ConfirmationProtocolViolation) Error() string {
	return fmt.Sprintf("gate: confirmation protocol violation in %s (tool %q, call %s): %s",
		e.ConversationID, e.Tool, e.ToolCallID, e.Reason)
}

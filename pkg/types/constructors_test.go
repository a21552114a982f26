package types

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("conv-1", "hi")

	if _, err := uuid.Parse(msg.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", msg.ID, err)
	}
	if msg.Role != RoleUser || msg.ConversationID != "conv-1" || msg.Content != "hi" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.CreatedAt.IsZero() || msg.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want UTC", msg.CreatedAt)
	}
}

func TestNewToolCallID(t *testing.T) {
	a, b := NewToolCallID(), NewToolCallID()
	if !strings.HasPrefix(a, "call_") {
		t.Errorf("NewToolCallID() = %q", a)
	}
	if a == b {
		t.Error("ids should be unique")
	}
}

func TestTimeoutError(t *testing.T) {
	err := error(&TimeoutError{Op: "model", After: 2 * time.Second})
	if err.Error() != "model timed out after 2s" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("should unwrap to context.DeadlineExceeded")
	}
	if got := (&TimeoutError{Op: "tool:swapTokens"}).Error(); got != "tool:swapTokens timed out" {
		t.Errorf("Error() = %q", got)
	}
}

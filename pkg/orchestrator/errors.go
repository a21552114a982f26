package orchestrator

import (
	"errors"
	"fmt"
)

// ErrEmptyHistory is returned when Select is called without any user message.
var ErrEmptyHistory = errors.New("orchestrator: history has no user message")

// OrchestrationError reports a failed tool-selection call. The turn that
// asked for it must be aborted; nothing is retried here.
type OrchestrationError struct {
	Cause error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestrator: tool selection failed: %v", e.Cause)
}

func (e *OrchestrationError) Unwrap() error { return e.Cause }

package types

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports an external call that exceeded its deadline.
type TimeoutError struct {
	Op    string        // "model", "orchestrator", "tool:transferSol", ...
	After time.Duration // configured deadline, zero when inherited from the caller
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
	}
	return fmt.Sprintf("%s timed out", e.Op)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

package tools

import (
	"context"
	"fmt"
	"time"
)

// MinActionFrequency is the shortest interval a scheduled action may use.
const MinActionFrequency = 60 * time.Second

// CreateActionTool schedules a recurring action, such as a periodic buy.
type CreateActionTool struct {
	Scheduler ActionScheduler
	Now       func() time.Time // nil = time.Now
}

func (c *CreateActionTool) Name() string { return CreateActionName }

func (c *CreateActionTool) Description() string {
	return `Create a scheduled action that repeats at a fixed frequency, e.g. "buy 1 SOL of BONK every day".
Requires user confirmation.`
}

func (c *CreateActionTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{
				"type":        "string",
				"description": "What the action does, in plain language",
			},
			"frequency": map[string]any{
				"type":        "integer",
				"minimum":     int(MinActionFrequency / time.Second),
				"description": "Interval between runs, in seconds",
			},
			"maxExecutions": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"description": "Stop after this many runs (optional)",
			},
			"startTime": map[string]any{
				"type":        "string",
				"description": "RFC3339 time of the first run (optional, defaults to now + frequency)",
			},
		},
		"required": []string{"description", "frequency"},
	}
}

func (c *CreateActionTool) RequiresConfirmation() bool { return true }

func (c *CreateActionTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	freq := intArg(input, "frequency", 0)
	if time.Duration(freq)*time.Second < MinActionFrequency {
		return ToolOutput{IsError: true, Message: fmt.Sprintf("frequency must be at least %d seconds", int(MinActionFrequency/time.Second))}, nil
	}

	next := now().UTC().Add(time.Duration(freq) * time.Second)
	if start := stringArg(input, "startTime"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return ToolOutput{IsError: true, Message: "startTime must be RFC3339"}, nil
		}
		next = t.UTC()
	}

	action := ScheduledAction{
		Description:   stringArg(input, "description"),
		FrequencySecs: freq,
		MaxExecutions: intArg(input, "maxExecutions", 0),
		NextRunAt:     next,
	}
	if caller, ok := CallerFromContext(ctx); ok {
		action.UserID = caller.UserID
		action.ConversationID = caller.ConversationID
	}

	saved, err := c.Scheduler.Schedule(ctx, action)
	if err != nil {
		return ToolOutput{}, fmt.Errorf("schedule action: %w", err)
	}
	return ToolOutput{Data: map[string]any{
		"actionId":  saved.ID,
		"nextRunAt": saved.NextRunAt.Format(time.RFC3339),
		"frequency": saved.FrequencySecs,
	}}, nil
}

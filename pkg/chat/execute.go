package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/gate"
	"github.com/jg-phare/gatekeep/pkg/tools"
	"github.com/jg-phare/gatekeep/pkg/transcript"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// execute runs inv's handler once per tool call id. Sensitive handlers run
// only with confirmed set or in degen mode. Handler failures and timeouts
// become error results; only bookkeeping failures are returned as errors.
func (t *turn) execute(ctx context.Context, inv types.ToolInvocation, confirmed bool) (types.ToolResult, error) {
	s := t.s
	tool, err := s.cfg.Registry.Get(inv.ToolName)
	if err != nil {
		return types.ToolResult{}, err
	}
	if tool.RequiresConfirmation() && !confirmed && !s.degen {
		return types.ToolResult{}, &gate.ConfirmationProtocolViolation{
			ConversationID: s.conv.ID,
			ToolCallID:     inv.ToolCallID,
			Tool:           inv.ToolName,
			Reason:         "sensitive tool called without confirmation",
		}
	}

	prev, ok, err := s.cfg.Executions.LookupExecution(ctx, s.conv.ID, inv.ToolCallID)
	if err != nil {
		return types.ToolResult{}, err
	}
	if ok {
		s.logger.Info("tool execution replayed",
			zap.String("tool", inv.ToolName),
			zap.String("tool_call_id", inv.ToolCallID))
		t.ran(inv, prev.Result)
		return prev.Result, nil
	}

	tctx := tools.WithCaller(ctx, tools.Caller{
		UserID:         s.conv.UserID,
		ConversationID: s.conv.ID,
		ToolCallID:     inv.ToolCallID,
	})
	cancel := context.CancelFunc(func() {})
	if s.cfg.ToolTimeout > 0 {
		tctx, cancel = context.WithTimeout(tctx, s.cfg.ToolTimeout)
	}
	out, err := tool.Execute(tctx, inv.Args)
	timedOut := errors.Is(tctx.Err(), context.DeadlineExceeded)
	cancel()

	var result types.ToolResult
	switch {
	case err != nil && ctx.Err() != nil:
		return types.ToolResult{}, ctx.Err()
	case err != nil && timedOut:
		te := &types.TimeoutError{Op: "tool " + inv.ToolName, After: s.cfg.ToolTimeout}
		s.logger.Warn("tool timed out", zap.String("tool", inv.ToolName), zap.Error(te))
		result = types.ErrorResult(te.Error())
	case err != nil:
		s.logger.Warn("tool failed", zap.Error(&tools.ToolExecutionError{
			Tool:       inv.ToolName,
			ToolCallID: inv.ToolCallID,
			Err:        err,
		}))
		result = types.ErrorResult(err.Error())
	default:
		result = out.Result()
	}

	if err := s.cfg.Executions.RecordExecution(ctx, types.Execution{
		ConversationID: s.conv.ID,
		ToolCallID:     inv.ToolCallID,
		Tool:           inv.ToolName,
		Result:         result,
		ExecutedAt:     s.cfg.Now().UTC(),
	}); err != nil {
		s.logger.Error("execution not recorded", zap.String("tool_call_id", inv.ToolCallID), zap.Error(err))
	}

	ev := transcript.Event{
		Type:       transcript.EventToolExecuted,
		ToolCallID: inv.ToolCallID,
		Tool:       inv.ToolName,
		Args:       inv.Args,
		Result:     &result,
	}
	if result.IsError() {
		ev.Type = transcript.EventToolFailed
	}
	s.record(ev)
	t.ran(inv, result)
	return result, nil
}

func (t *turn) ran(inv types.ToolInvocation, result types.ToolResult) {
	r := result
	inv.Result = &r
	inv.State = types.StateResult
	t.mu.Lock()
	t.executed = append(t.executed, inv)
	t.mu.Unlock()
}

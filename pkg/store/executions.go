package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// RecordExecution stores the result of a tool run. The first record for a
// tool call id within a conversation wins.
func (s *Store) RecordExecution(ctx context.Context, e types.Execution) error {
	result, err := marshalJSON(e.Result)
	if err != nil {
		return wrap("record execution", err)
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = s.timestamp()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (tool_call_id, conversation_id, tool, result_json, executed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, tool_call_id) DO NOTHING`,
		e.ToolCallID, e.ConversationID, e.Tool, result, formatTime(e.ExecutedAt))
	return wrap("record execution", err)
}

// LookupExecution returns the recorded execution for a tool call id in a
// conversation.
func (s *Store) LookupExecution(ctx context.Context, conversationID, toolCallID string) (types.Execution, bool, error) {
	var e types.Execution
	var result, executed string
	err := s.db.QueryRowContext(ctx, `
		SELECT tool_call_id, conversation_id, tool, result_json, executed_at
		FROM executions WHERE conversation_id = ? AND tool_call_id = ?`, conversationID, toolCallID).
		Scan(&e.ToolCallID, &e.ConversationID, &e.Tool, &result, &executed)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Execution{}, false, nil
	}
	if err != nil {
		return types.Execution{}, false, wrap("lookup execution", err)
	}
	if err := json.Unmarshal([]byte(result), &e.Result); err != nil {
		return types.Execution{}, false, wrap("lookup execution", err)
	}
	e.ExecutedAt = parseTime(executed)
	return e, true, nil
}

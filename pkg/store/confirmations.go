package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// SaveConfirmation upserts a confirmation record keyed by conversation and
// tool call id.
func (s *Store) SaveConfirmation(ctx context.Context, c types.Confirmation) error {
	args, err := marshalJSON(c.Args)
	if err != nil {
		return wrap("save confirmation", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO confirmations
			(tool_call_id, conversation_id, tool, args_json, message, state, fingerprint,
			 requested_turn, resolved_turn, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, tool_call_id) DO UPDATE SET
			state = excluded.state,
			resolved_turn = excluded.resolved_turn,
			updated_at = excluded.updated_at`,
		c.ToolCallID, c.ConversationID, c.Tool, args, c.Message, string(c.State), c.Fingerprint,
		c.RequestedTurn, c.ResolvedTurn, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return wrap("save confirmation", err)
}

// LoadConfirmations returns every confirmation record of a conversation,
// oldest first.
func (s *Store) LoadConfirmations(ctx context.Context, conversationID string) ([]types.Confirmation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_call_id, conversation_id, tool, args_json, message, state, fingerprint,
			requested_turn, resolved_turn, created_at, updated_at
		FROM confirmations WHERE conversation_id = ?
		ORDER BY created_at, tool_call_id`, conversationID)
	if err != nil {
		return nil, wrap("load confirmations", err)
	}
	defer rows.Close()

	var out []types.Confirmation
	for rows.Next() {
		var c types.Confirmation
		var args, state, created, updated string
		if err := rows.Scan(&c.ToolCallID, &c.ConversationID, &c.Tool, &args, &c.Message, &state,
			&c.Fingerprint, &c.RequestedTurn, &c.ResolvedTurn, &created, &updated); err != nil {
			return nil, wrap("load confirmations", err)
		}
		if err := json.Unmarshal([]byte(args), &c.Args); err != nil {
			return nil, wrap("load confirmations", fmt.Errorf("decode args for %s: %w", c.ToolCallID, err))
		}
		c.State = types.ConfirmationState(state)
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("load confirmations", err)
	}
	return out, nil
}

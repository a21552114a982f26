package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// AttachedResult is a tool result for an invocation stored in an earlier turn.
type AttachedResult struct {
	ToolCallID string
	Result     types.ToolResult
}

// Turn is everything a completed turn adds to a conversation.
type Turn struct {
	ConversationID string
	Messages       []types.Message
	Results        []AttachedResult
}

// SaveMessage stores msg and its tool invocations. Saving a message id that
// already exists only fills in invocation results still missing.
func (s *Store) SaveMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	if msg.ID == "" {
		msg.ID = types.NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.timestamp()
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.saveMessage(ctx, tx, msg)
	})
	if err != nil {
		return types.Message{}, wrap("save message", err)
	}
	return msg, nil
}

// SaveTurn stores a turn's messages and late results in one transaction.
func (s *Store) SaveTurn(ctx context.Context, turn Turn) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, msg := range turn.Messages {
			if msg.ConversationID == "" {
				msg.ConversationID = turn.ConversationID
			}
			if err := s.saveMessage(ctx, tx, msg); err != nil {
				return err
			}
		}
		for _, r := range turn.Results {
			if _, err := attachResult(ctx, tx, turn.ConversationID, r.ToolCallID, r.Result); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("save turn", err)
}

func (s *Store) saveMessage(ctx context.Context, tx *sql.Tx, msg types.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid role %q", msg.Role)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, formatTime(msg.CreatedAt))
	if err != nil {
		return err
	}

	for pos, inv := range msg.ToolInvocations {
		args, err := marshalJSON(inv.Args)
		if err != nil {
			return fmt.Errorf("marshal args for %s: %w", inv.ToolCallID, err)
		}
		var result sql.NullString
		if inv.State == types.StateResult && inv.Result != nil {
			b, err := marshalJSON(inv.Result)
			if err != nil {
				return fmt.Errorf("marshal result for %s: %w", inv.ToolCallID, err)
			}
			result = sql.NullString{String: b, Valid: true}
		}
		state := types.StateCall
		if result.Valid {
			state = types.StateResult
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tool_invocations
				(tool_call_id, message_id, conversation_id, position, tool_name, args_json, state, result_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, tool_call_id) DO UPDATE SET
				state = excluded.state,
				result_json = excluded.result_json
			WHERE tool_invocations.state = 'call' AND excluded.state = 'result'`,
			inv.ToolCallID, msg.ID, msg.ConversationID, pos, inv.ToolName, args, string(state), result)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(s.timestamp()), msg.ConversationID)
	return err
}

// GetMessages returns a conversation's messages in insertion order with
// their tool invocations in call order.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY seq`, conversationID)
	if err != nil {
		return nil, wrap("get messages", err)
	}
	var msgs []types.Message
	index := make(map[string]int)
	for rows.Next() {
		var m types.Message
		var role, created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &created); err != nil {
			rows.Close()
			return nil, wrap("get messages", err)
		}
		m.Role = types.Role(role)
		m.CreatedAt = parseTime(created)
		index[m.ID] = len(msgs)
		msgs = append(msgs, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap("get messages", err)
	}

	invRows, err := s.db.QueryContext(ctx, `
		SELECT message_id, tool_call_id, tool_name, args_json, state, result_json
		FROM tool_invocations WHERE conversation_id = ?
		ORDER BY message_id, position`, conversationID)
	if err != nil {
		return nil, wrap("get messages", err)
	}
	defer invRows.Close()
	for invRows.Next() {
		var msgID, args, state string
		var result sql.NullString
		var inv types.ToolInvocation
		if err := invRows.Scan(&msgID, &inv.ToolCallID, &inv.ToolName, &args, &state, &result); err != nil {
			return nil, wrap("get messages", err)
		}
		if err := json.Unmarshal([]byte(args), &inv.Args); err != nil {
			return nil, wrap("get messages", fmt.Errorf("decode args for %s: %w", inv.ToolCallID, err))
		}
		inv.State = types.InvocationState(state)
		if result.Valid {
			var r types.ToolResult
			if err := json.Unmarshal([]byte(result.String), &r); err != nil {
				return nil, wrap("get messages", fmt.Errorf("decode result for %s: %w", inv.ToolCallID, err))
			}
			inv.Result = &r
		}
		if i, ok := index[msgID]; ok {
			msgs[i].ToolInvocations = append(msgs[i].ToolInvocations, inv)
		}
	}
	if err := invRows.Err(); err != nil {
		return nil, wrap("get messages", err)
	}
	return msgs, nil
}

// AttachToolResult moves a stored invocation from call to result. It is
// set-once: false is returned when the invocation already has a result.
func (s *Store) AttachToolResult(ctx context.Context, conversationID, toolCallID string, result types.ToolResult) (bool, error) {
	var attached bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		attached, err = attachResult(ctx, tx, conversationID, toolCallID, result)
		return err
	})
	if err != nil {
		return false, wrap("attach tool result", err)
	}
	return attached, nil
}

func attachResult(ctx context.Context, tx *sql.Tx, conversationID, toolCallID string, result types.ToolResult) (bool, error) {
	b, err := marshalJSON(result)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE tool_invocations SET state = 'result', result_json = ?
		WHERE conversation_id = ? AND tool_call_id = ? AND state = 'call'`,
		b, conversationID, toolCallID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tool_invocations WHERE conversation_id = ? AND tool_call_id = ?`,
		conversationID, toolCallID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, fmt.Errorf("tool call %s: %w", toolCallID, ErrNotFound)
	}
	return false, nil
}

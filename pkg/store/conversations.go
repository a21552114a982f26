package store

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// CreateConversation inserts a new conversation owned by userID.
func (s *Store) CreateConversation(ctx context.Context, userID, title string) (types.Conversation, error) {
	now := s.timestamp()
	conv := types.Conversation{
		ID:        types.NewConversationID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, conv.Model, formatTime(now), formatTime(now))
	if err != nil {
		return types.Conversation{}, wrap("create conversation", err)
	}
	s.logger.Debug("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID))
	return conv, nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, model, created_at, updated_at
		FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Conversation{}, wrap("get conversation", ErrNotFound)
	}
	if err != nil {
		return types.Conversation{}, wrap("get conversation", err)
	}
	return conv, nil
}

// ListConversations returns userID's conversations, most recently active first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]types.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, model, created_at, updated_at
		FROM conversations WHERE user_id = ?
		ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, wrap("list conversations", err)
	}
	defer rows.Close()

	var out []types.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, wrap("list conversations", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list conversations", err)
	}
	return out, nil
}

// SetConversationModel records the model a conversation uses.
func (s *Store) SetConversationModel(ctx context.Context, id, model string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET model = ?, updated_at = ? WHERE id = ?`,
		model, formatTime(s.timestamp()), id)
	if err != nil {
		return wrap("set conversation model", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrap("set conversation model", ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (types.Conversation, error) {
	var conv types.Conversation
	var created, updated string
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Model, &created, &updated); err != nil {
		return types.Conversation{}, err
	}
	conv.CreatedAt = parseTime(created)
	conv.UpdatedAt = parseTime(updated)
	return conv, nil
}

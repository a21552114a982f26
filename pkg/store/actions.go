package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/tools"
)

// Schedule persists a scheduled action created by createActionTool.
// It implements tools.ActionScheduler.
func (s *Store) Schedule(ctx context.Context, a tools.ScheduledAction) (tools.ScheduledAction, error) {
	if a.UserID == "" {
		return tools.ScheduledAction{}, wrap("schedule action", errors.New("user id is required"))
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := s.timestamp()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.NextRunAt.IsZero() {
		a.NextRunAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_actions
			(id, user_id, conversation_id, description, frequency_secs, max_executions, next_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.ConversationID, a.Description, a.FrequencySecs, a.MaxExecutions,
		formatTime(a.NextRunAt), formatTime(a.CreatedAt))
	if err != nil {
		return tools.ScheduledAction{}, wrap("schedule action", err)
	}
	s.logger.Info("action scheduled",
		zap.String("action_id", a.ID),
		zap.String("user_id", a.UserID),
		zap.Int("frequency_secs", a.FrequencySecs))
	return a, nil
}

// ListActions returns userID's scheduled actions ordered by next run.
func (s *Store) ListActions(ctx context.Context, userID string) ([]tools.ScheduledAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, description, frequency_secs, max_executions, next_run_at, created_at
		FROM scheduled_actions WHERE user_id = ?
		ORDER BY next_run_at, id`, userID)
	if err != nil {
		return nil, wrap("list actions", err)
	}
	defer rows.Close()

	var out []tools.ScheduledAction
	for rows.Next() {
		var a tools.ScheduledAction
		var next, created string
		if err := rows.Scan(&a.ID, &a.UserID, &a.ConversationID, &a.Description,
			&a.FrequencySecs, &a.MaxExecutions, &next, &created); err != nil {
			return nil, wrap("list actions", err)
		}
		a.NextRunAt = parseTime(next)
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list actions", err)
	}
	return out, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// GetPreferences returns userID's preferences. A user with none stored gets
// the zero preferences (degen mode off).
func (s *Store) GetPreferences(ctx context.Context, userID string) (types.Preferences, error) {
	p := types.Preferences{UserID: userID}
	var degen int
	var updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT degen_mode, model, updated_at FROM preferences WHERE user_id = ?`, userID).
		Scan(&degen, &p.Model, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return types.Preferences{}, wrap("get preferences", err)
	}
	p.DegenMode = degen != 0
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// SavePreferences upserts userID's preferences.
func (s *Store) SavePreferences(ctx context.Context, p types.Preferences) error {
	degen := 0
	if p.DegenMode {
		degen = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, degen_mode, model, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			degen_mode = excluded.degen_mode,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		p.UserID, degen, p.Model, formatTime(s.timestamp()))
	return wrap("save preferences", err)
}

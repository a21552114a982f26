// Package store persists conversations, messages, tool invocations,
// confirmation records, executions, preferences and scheduled actions in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// schemaVersion is stored in PRAGMA user_version. Tool call ids come from
// the model, so every table holding them is keyed per conversation.
const schemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

CREATE TABLE IF NOT EXISTS tool_invocations (
	conversation_id TEXT NOT NULL,
	tool_call_id TEXT NOT NULL,
	message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	tool_name TEXT NOT NULL,
	args_json TEXT NOT NULL,
	state TEXT NOT NULL,
	result_json TEXT,
	PRIMARY KEY (conversation_id, tool_call_id)
);
CREATE INDEX IF NOT EXISTS idx_invocations_message ON tool_invocations(message_id, position);

CREATE TABLE IF NOT EXISTS confirmations (
	conversation_id TEXT NOT NULL,
	tool_call_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	args_json TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	requested_turn INTEGER NOT NULL,
	resolved_turn INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (conversation_id, tool_call_id)
);

CREATE TABLE IF NOT EXISTS executions (
	conversation_id TEXT NOT NULL,
	tool_call_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	result_json TEXT NOT NULL,
	executed_at TEXT NOT NULL,
	PRIMARY KEY (conversation_id, tool_call_id)
);

CREATE TABLE IF NOT EXISTS preferences (
	user_id TEXT PRIMARY KEY,
	degen_mode INTEGER NOT NULL DEFAULT 0,
	model TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_actions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	frequency_secs INTEGER NOT NULL,
	max_executions INTEGER NOT NULL DEFAULT 0,
	next_run_at TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_user ON scheduled_actions(user_id, next_run_at);
`

// Store is the SQLite-backed relational store. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, wrap("open", fmt.Errorf("create directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap("open", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("store")

	if err := s.initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return wrap("initialize", err)
		}
	}
	var version, tables int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return wrap("initialize", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'tool_invocations'").Scan(&tables); err != nil {
		return wrap("initialize", err)
	}
	if tables > 0 && version != schemaVersion {
		return wrap("initialize", fmt.Errorf("database schema version %d, want %d: %w", version, schemaVersion, ErrSchemaVersion))
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrap("initialize", fmt.Errorf("create schema: %w", err))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return wrap("initialize", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

func (s *Store) timestamp() time.Time { return s.now().UTC() }

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

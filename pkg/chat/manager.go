// Package chat runs conversation turns: it selects tools, calls the model,
// routes sensitive tool calls through the confirmation gate and persists
// what each turn adds.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/prompt"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// Manager owns the live sessions. Safe for concurrent use; turns within one
// conversation are serialized by its Session.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager validates cfg and fills in defaults.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger.Named("chat"),
		sessions: make(map[string]*Session),
	}, nil
}

// Create starts a new conversation for userID.
func (m *Manager) Create(ctx context.Context, userID, title string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("chat: user id is required")
	}
	conv, err := m.cfg.Store.CreateConversation(ctx, userID, title)
	if err != nil {
		return nil, err
	}
	prefs, err := m.cfg.Store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := m.newSession(conv, nil, prefs)
	m.mu.Lock()
	m.sessions[conv.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Open returns the live session for conversationID, loading its history
// and the owner's preferences from the store on first use.
func (m *Manager) Open(ctx context.Context, conversationID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[conversationID]; ok {
		return s, nil
	}

	conv, err := m.cfg.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history, err := m.cfg.Store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	prefs, err := m.cfg.Store.GetPreferences(ctx, conv.UserID)
	if err != nil {
		return nil, err
	}
	s := m.newSession(conv, history, prefs)
	m.sessions[conversationID] = s
	m.logger.Debug("session loaded",
		zap.String("conversation_id", conversationID),
		zap.Int("messages", len(history)))
	return s, nil
}

// Send appends text as a user message to the conversation and runs a turn.
func (m *Manager) Send(ctx context.Context, conversationID, text string) (*TurnResult, error) {
	s, err := m.Open(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, text)
}

// Close drops the session from memory. Persisted state is untouched.
func (m *Manager) Close(conversationID string) {
	m.mu.Lock()
	delete(m.sessions, conversationID)
	m.mu.Unlock()
	m.cfg.Gate.Forget(conversationID)
}

// FailureMessage is the text a UI shows when a turn fails.
func FailureMessage() string {
	return prompt.GetReminder(prompt.ReminderTurnFailed, nil)
}

func (m *Manager) newSession(conv types.Conversation, history []types.Message, prefs types.Preferences) *Session {
	model := conv.Model
	if model == "" {
		model = prefs.Model
	}
	return &Session{
		cfg:     &m.cfg,
		conv:    conv,
		history: history,
		model:   model,
		degen:   prefs.DegenMode,
		logger:  m.logger.With(zap.String("conversation_id", conv.ID)),
	}
}

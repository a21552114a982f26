package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/permission"
	"github.com/jg-phare/gatekeep/pkg/transcript"
	"github.com/jg-phare/gatekeep/pkg/types"
	"github.com/jg-phare/gatekeep/pkg/window"
)

// Session is one conversation. Its methods serialize on the session so at
// most one turn runs at a time.
type Session struct {
	cfg    *Config
	logger *zap.Logger

	mu      sync.Mutex
	conv    types.Conversation
	history []types.Message
	unsaved []types.Message // user messages the store has not accepted yet
	model   string
	degen   bool
}

// ID returns the conversation id.
func (s *Session) ID() string { return s.conv.ID }

// UserID returns the conversation owner.
func (s *Session) UserID() string { return s.conv.UserID }

// Title returns the conversation title.
func (s *Session) Title() string { return s.conv.Title }

// History returns a copy of the conversation history.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHistory(s.history)
}

// Model returns the model used for this conversation's turns.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelLocked()
}

func (s *Session) modelLocked() string {
	if s.model != "" {
		return s.model
	}
	return s.cfg.Client.Model()
}

// contextLimit returns the context window of the current model. The caller
// holds s.mu.
func (s *Session) contextLimit() int {
	if s.cfg.ContextLimit > 0 {
		return s.cfg.ContextLimit
	}
	return window.ContextLimit(s.modelLocked())
}

// SetModel switches the conversation's model and remembers it as the
// user's preference.
func (s *Session) SetModel(ctx context.Context, model string) error {
	model = strings.TrimSpace(model)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cfg.Store.SetConversationModel(ctx, s.conv.ID, model); err != nil {
		return err
	}
	prefs, err := s.cfg.Store.GetPreferences(ctx, s.conv.UserID)
	if err != nil {
		return err
	}
	prefs.Model = model
	if err := s.cfg.Store.SavePreferences(ctx, prefs); err != nil {
		return err
	}
	s.model = model
	s.conv.Model = model
	return nil
}

// Degen reports whether the confirmation gate is bypassed.
func (s *Session) Degen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degen
}

// SetDegenMode toggles the confirmation bypass and persists it to the
// user's preferences.
func (s *Session) SetDegenMode(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.cfg.Store.GetPreferences(ctx, s.conv.UserID)
	if err != nil {
		return err
	}
	prefs.DegenMode = enabled
	if err := s.cfg.Store.SavePreferences(ctx, prefs); err != nil {
		return err
	}
	s.degen = enabled
	s.logger.Info("degen mode changed", zap.Bool("enabled", enabled))
	return nil
}

// AppendUserMessage adds a user message to history and persists it. A store
// failure is returned but the message stays in history and is saved with the
// next turn.
func (s *Session) AppendUserMessage(ctx context.Context, text string) (types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendUser(ctx, text)
}

func (s *Session) appendUser(ctx context.Context, text string) (types.Message, error) {
	if strings.TrimSpace(text) == "" {
		return types.Message{}, ErrEmptyMessage
	}
	msg := types.NewUserMessage(s.conv.ID, text)
	msg.CreatedAt = s.cfg.Now().UTC()
	s.history = append(s.history, msg)
	s.record(transcript.Event{Type: transcript.EventUserMessage, Text: text})

	if _, err := s.cfg.Store.SaveMessage(ctx, msg); err != nil {
		s.unsaved = append(s.unsaved, msg)
		s.logger.Warn("user message not persisted", zap.String("message_id", msg.ID), zap.Error(err))
		return msg, err
	}
	return msg, nil
}

// RunTurn answers the user message at the end of history.
func (s *Session) RunTurn(ctx context.Context) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runTurn(ctx)
}

// Send appends text as a user message and runs a turn. A failure to persist
// the user message alone does not stop the turn.
func (s *Session) Send(ctx context.Context, text string) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.appendUser(ctx, text); errors.Is(err, ErrEmptyMessage) {
		return nil, err
	}
	return s.runTurn(ctx)
}

func (s *Session) checker() *permission.Checker {
	base := s.cfg.Permissions
	if s.degen && base.Mode() == permission.ModeDefault {
		return base.WithMode(permission.ModeDegen)
	}
	return base
}

func (s *Session) record(ev transcript.Event) {
	ev.ConversationID = s.conv.ID
	if ev.Time.IsZero() {
		ev.Time = s.cfg.Now().UTC()
	}
	if sr, ok := s.cfg.Transcript.(transcript.SyncRecorder); ok && transcript.Durable(ev.Type) {
		if err := sr.RecordSync(ev); err != nil {
			s.logger.Warn("transcript write failed",
				zap.String("type", string(ev.Type)), zap.String("tool_call_id", ev.ToolCallID), zap.Error(err))
		}
		return
	}
	s.cfg.Transcript.Record(ev)
}

func cloneHistory(msgs []types.Message) []types.Message {
	if msgs == nil {
		return nil
	}
	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/chat"
)

// ErrForbidden is reported when a client opens another user's conversation.
var ErrForbidden = errors.New("transport: conversation belongs to another user")

// Sessions opens chat sessions. *chat.Manager implements it.
type Sessions interface {
	Create(ctx context.Context, userID, title string) (*chat.Session, error)
	Open(ctx context.Context, conversationID string) (*chat.Session, error)
}

// Router serves one client: it reads envelopes from a Transport, applies
// them to the client's current session and writes the outcome back.
// Envelopes are handled in order, so a client never has two turns in flight.
type Router struct {
	transport Transport
	sessions  Sessions
	userID    string
	logger    *zap.Logger

	current *chat.Session
}

// NewRouter creates a Router acting for userID.
func NewRouter(transport Transport, sessions Sessions, userID string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		transport: transport,
		sessions:  sessions,
		userID:    userID,
		logger:    logger.Named("transport").With(zap.String("user_id", userID)),
	}
}

// Run handles envelopes until input ends or ctx is done, then closes the
// transport.
func (r *Router) Run(ctx context.Context) error {
	defer r.transport.Close()

	in := r.transport.ReadMessages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-in:
			if !ok {
				return nil
			}
			if err := r.handle(ctx, env); err != nil {
				if errors.Is(err, ErrTransportClosed) {
					return nil
				}
				return fmt.Errorf("transport: write: %w", err)
			}
		}
	}
}

// handle applies one envelope. Only write failures are returned.
func (r *Router) handle(ctx context.Context, env Envelope) error {
	if env.Err != nil {
		return r.fail(env.ConversationID, env.Err)
	}

	switch env.Kind {
	case KindOpen:
		s, err := r.attach(ctx, env.ConversationID, env.Title)
		if err != nil {
			return r.fail(env.ConversationID, err)
		}
		return r.conversation(s)

	case KindUserMessage:
		s, err := r.attach(ctx, env.ConversationID, "")
		if err != nil {
			return r.fail(env.ConversationID, err)
		}
		res, err := s.Send(ctx, env.Text)
		if err != nil {
			r.logger.Warn("turn failed", zap.String("conversation_id", s.ID()), zap.Error(err))
			return r.send(Envelope{
				Kind:           KindError,
				ConversationID: s.ID(),
				Text:           chat.FailureMessage(),
				Error:          err.Error(),
			})
		}
		return r.send(Envelope{Kind: KindTurn, ConversationID: s.ID(), Turn: newTurnPayload(res)})

	case KindSetDegen:
		if env.Enabled == nil {
			return r.fail(env.ConversationID, errors.New("enabled is required"))
		}
		s, err := r.attach(ctx, env.ConversationID, "")
		if err == nil {
			err = s.SetDegenMode(ctx, *env.Enabled)
		}
		if err != nil {
			return r.fail(env.ConversationID, err)
		}
		return r.conversation(s)

	case KindSetModel:
		s, err := r.attach(ctx, env.ConversationID, "")
		if err == nil {
			err = s.SetModel(ctx, env.Model)
		}
		if err != nil {
			return r.fail(env.ConversationID, err)
		}
		return r.conversation(s)

	default:
		return r.fail(env.ConversationID, fmt.Errorf("unknown envelope type %q", env.Kind))
	}
}

// attach resolves the session an envelope addresses. An empty id means the
// current session, or a new conversation when there is none.
func (r *Router) attach(ctx context.Context, conversationID, title string) (*chat.Session, error) {
	if r.current != nil && (conversationID == "" || conversationID == r.current.ID()) {
		return r.current, nil
	}

	var (
		s   *chat.Session
		err error
	)
	if conversationID == "" {
		s, err = r.sessions.Create(ctx, r.userID, title)
	} else {
		s, err = r.sessions.Open(ctx, conversationID)
		if err == nil && s.UserID() != r.userID {
			err = ErrForbidden
		}
	}
	if err != nil {
		return nil, err
	}
	r.current = s
	return s, nil
}

func (r *Router) conversation(s *chat.Session) error {
	return r.send(Envelope{
		Kind:           KindConversation,
		ConversationID: s.ID(),
		Conversation: &ConversationInfo{
			ID:        s.ID(),
			Title:     s.Title(),
			Model:     s.Model(),
			DegenMode: s.Degen(),
			Messages:  len(s.History()),
		},
	})
}

func (r *Router) fail(conversationID string, err error) error {
	return r.send(Envelope{Kind: KindError, ConversationID: conversationID, Error: err.Error()})
}

func (r *Router) send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.transport.Write(data)
}

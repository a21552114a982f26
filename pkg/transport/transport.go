// Package transport carries chat envelopes between a client and the chat
// runtime over a WebSocket connection, JSONL streams, or in-process channels.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jg-phare/gatekeep/pkg/chat"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// ErrTransportClosed is returned when operations are attempted on a closed transport.
var ErrTransportClosed = errors.New("transport closed")

// Kind identifies an envelope.
type Kind string

const (
	// client → server
	KindOpen        Kind = "open" // create or resume a conversation
	KindUserMessage Kind = "user_message"
	KindSetDegen    Kind = "set_degen"
	KindSetModel    Kind = "set_model"

	// server → client
	KindConversation Kind = "conversation"
	KindTurn         Kind = "turn"
	KindError        Kind = "error"
)

// Envelope is one JSON frame in either direction.
type Envelope struct {
	Kind           Kind   `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Text           string `json:"text,omitempty"`
	Title          string `json:"title,omitempty"`
	Model          string `json:"model,omitempty"`
	Enabled        *bool  `json:"enabled,omitempty"`

	Conversation *ConversationInfo `json:"conversation,omitempty"`
	Turn         *TurnPayload      `json:"turn,omitempty"`
	Error        string            `json:"error,omitempty"`

	Err error `json:"-"` // set on inbound frames that could not be read
}

// ConversationInfo describes the session a client is attached to.
type ConversationInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Model     string `json:"model"`
	DegenMode bool   `json:"degenMode"`
	Messages  int    `json:"messages"`
}

// TurnPayload is the client view of a chat.TurnResult.
type TurnPayload struct {
	Reply        string                  `json:"reply"`
	State        types.ConfirmationState `json:"state"`
	Pending      *types.Confirmation     `json:"pending,omitempty"`
	ToolsOffered []string                `json:"toolsOffered,omitempty"`
	Messages     []types.Message         `json:"messages"`
}

func newTurnPayload(res *chat.TurnResult) *TurnPayload {
	return &TurnPayload{
		Reply:        res.Reply,
		State:        res.State,
		Pending:      res.Pending,
		ToolsOffered: res.ToolsOffered,
		Messages:     res.Messages,
	}
}

// Transport is a bidirectional envelope stream.
type Transport interface {
	// Write sends one encoded envelope to the client.
	// Returns ErrTransportClosed if the transport has been closed.
	Write(data []byte) error

	// Close shuts down the transport. Safe to call multiple times.
	Close() error

	// IsReady returns true if the transport is accepting writes.
	IsReady() bool

	// ReadMessages returns the envelopes sent by the client. The channel is
	// closed when no more input will arrive.
	ReadMessages() <-chan Envelope
}

func decodeEnvelope(data []byte) Envelope {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{Kind: KindError, Err: fmt.Errorf("transport: malformed frame: %w", err)}
	}
	return env
}

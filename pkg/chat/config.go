package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/gate"
	"github.com/jg-phare/gatekeep/pkg/llm"
	"github.com/jg-phare/gatekeep/pkg/permission"
	"github.com/jg-phare/gatekeep/pkg/store"
	"github.com/jg-phare/gatekeep/pkg/tools"
	"github.com/jg-phare/gatekeep/pkg/transcript"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// DefaultMaxSteps bounds the model calls in one turn.
const DefaultMaxSteps = 5

// Store is the persistence a chat session needs. *store.Store implements it.
type Store interface {
	CreateConversation(ctx context.Context, userID, title string) (types.Conversation, error)
	GetConversation(ctx context.Context, id string) (types.Conversation, error)
	SetConversationModel(ctx context.Context, id, model string) error
	SaveMessage(ctx context.Context, msg types.Message) (types.Message, error)
	SaveTurn(ctx context.Context, turn store.Turn) error
	GetMessages(ctx context.Context, conversationID string) ([]types.Message, error)
	GetPreferences(ctx context.Context, userID string) (types.Preferences, error)
	SavePreferences(ctx context.Context, p types.Preferences) error
}

// ExecutionLog makes tool execution idempotent per tool call id. Ids are
// only unique within a conversation.
type ExecutionLog interface {
	RecordExecution(ctx context.Context, e types.Execution) error
	LookupExecution(ctx context.Context, conversationID, toolCallID string) (types.Execution, bool, error)
}

// ToolSelector picks the tools offered on a turn. *orchestrator.Orchestrator
// implements it.
type ToolSelector interface {
	Select(ctx context.Context, history []types.Message, suppressConfirmation bool) ([]string, error)
}

// Config wires a Manager.
type Config struct {
	Registry    *tools.Registry
	Selector    ToolSelector
	Client      llm.Client
	Store       Store
	Gate        *gate.Gate          // default: gate over Store when it is a gate.Ledger
	Permissions *permission.Checker // default: tool defaults only
	Executions  ExecutionLog        // default: Store when it is an ExecutionLog
	Transcript  transcript.Recorder // default: transcript.Nop
	Logger      *zap.Logger

	WalletAddress string
	MaxSteps      int
	ContextLimit  int           // model context window in tokens; default by model name
	ModelTimeout  time.Duration // per model call
	ToolTimeout   time.Duration // per tool handler
	Now           func() time.Time
}

func (c *Config) setDefaults() error {
	switch {
	case c.Registry == nil:
		return errors.New("chat: registry is required")
	case c.Selector == nil:
		return errors.New("chat: tool selector is required")
	case c.Client == nil:
		return errors.New("chat: llm client is required")
	case c.Store == nil:
		return errors.New("chat: store is required")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Gate == nil {
		opts := []gate.Option{gate.WithLogger(c.Logger)}
		if l, ok := c.Store.(gate.Ledger); ok {
			opts = append(opts, gate.WithLedger(l))
		}
		c.Gate = gate.New(opts...)
	}
	if c.Permissions == nil {
		p, err := permission.NewChecker(permission.CheckerConfig{Tools: c.Registry})
		if err != nil {
			return err
		}
		c.Permissions = p
	}
	if c.Executions == nil {
		if l, ok := c.Store.(ExecutionLog); ok {
			c.Executions = l
		} else {
			c.Executions = newMemoryExecutions()
		}
	}
	if c.Transcript == nil {
		c.Transcript = transcript.Nop{}
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

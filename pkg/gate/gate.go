// Package gate enforces the rule that a sensitive tool runs only after the
// user assents in a later turn than the one that asked.
//
// Each request is a small state machine keyed by the toolCallId of the
// askForConfirmation invocation that opened it:
//
//	Idle → AwaitingConfirmation → Confirmed → Executed (→ Idle)
//	                            ↘ Rejected (→ Idle)
//
// A conversation holds at most one open request; a new one supersedes it.
package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// Action is a sensitive tool call the model wants to run.
type Action struct {
	ToolCallID string // id of the askForConfirmation invocation
	Tool       string
	Args       map[string]any
	Message    string // summary shown to the user
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Verdict  Verdict
	Action   types.Confirmation
	Reprompt bool // reply was ambiguous; the action still awaits confirmation
}

type conversation struct {
	open     *types.Confirmation
	rejected map[string]int // fingerprint -> user turn of the refusal
}

// Gate tracks confirmation state per conversation. Safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	convs    map[string]*conversation
	ledger   Ledger
	classify Classifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithLedger sets the persistence backend. Default: MemoryLedger.
func WithLedger(l Ledger) Option { return func(g *Gate) { g.ledger = l } }

// WithClassifier sets the reply classifier. Default: KeywordClassifier.
func WithClassifier(c Classifier) Option { return func(g *Gate) { g.classify = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(g *Gate) { g.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(g *Gate) { g.now = now } }

// New creates a Gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		convs:    make(map[string]*conversation),
		ledger:   NewMemoryLedger(),
		classify: KeywordClassifier{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("gate")
	return g
}

// Fingerprint identifies an action by tool name and canonical arguments.
func Fingerprint(tool string, args map[string]any) string {
	canon, _ := json.Marshal(args) // map keys are sorted
	sum := sha256.Sum256(append([]byte(tool+"\x00"), canon...))
	return hex.EncodeToString(sum[:12])
}

// load returns the cached state for a conversation, rebuilding it from the
// ledger on first use. Callers hold g.mu.
func (g *Gate) load(ctx context.Context, conversationID string) (*conversation, error) {
	if c, ok := g.convs[conversationID]; ok {
		return c, nil
	}
	recs, err := g.ledger.LoadConfirmations(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("gate: load confirmations: %w", err)
	}
	c := &conversation{rejected: make(map[string]int)}
	for i := range recs {
		r := recs[i]
		switch {
		case r.State.Open():
			if c.open == nil || r.CreatedAt.After(c.open.CreatedAt) {
				c.open = &r
			}
		case r.State == types.ConfirmationRejected:
			if r.ResolvedTurn > c.rejected[r.Fingerprint] {
				c.rejected[r.Fingerprint] = r.ResolvedTurn
			}
		}
	}
	g.convs[conversationID] = c
	return c, nil
}

func (g *Gate) save(ctx context.Context, rec *types.Confirmation) error {
	rec.UpdatedAt = g.now().UTC()
	if err := g.ledger.SaveConfirmation(ctx, rec.Clone()); err != nil {
		return fmt.Errorf("gate: save confirmation: %w", err)
	}
	return nil
}

// Request opens a confirmation for action (Idle → AwaitingConfirmation).
// userTurn is the number of user messages in the conversation so far.
// An open request is superseded. An action refused at or after userTurn is
// refused again with ErrAlreadyRejected.
func (g *Gate) Request(ctx context.Context, conversationID string, action Action, userTurn int) (types.Confirmation, error) {
	if action.ToolCallID == "" || action.Tool == "" {
		return types.Confirmation{}, fmt.Errorf("gate: action needs a tool call id and a tool")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.load(ctx, conversationID)
	if err != nil {
		return types.Confirmation{}, err
	}

	fp := Fingerprint(action.Tool, action.Args)
	if turn, ok := c.rejected[fp]; ok && userTurn <= turn {
		g.logger.Info("confirmation re-request refused",
			zap.String("conversation_id", conversationID),
			zap.String("tool", action.Tool))
		return types.Confirmation{}, ErrAlreadyRejected
	}

	if prev := c.open; prev != nil {
		prev.State = types.ConfirmationSuperseded
		if err := g.save(ctx, prev); err != nil {
			return types.Confirmation{}, err
		}
		c.open = nil
		g.logger.Info("confirmation superseded",
			zap.String("conversation_id", conversationID),
			zap.String("tool_call_id", prev.ToolCallID))
	}

	args := action.Args
	if args == nil {
		args = map[string]any{}
	}
	now := g.now().UTC()
	rec := &types.Confirmation{
		ConversationID: conversationID,
		ToolCallID:     action.ToolCallID,
		Tool:           action.Tool,
		Args:           args,
		Message:        action.Message,
		State:          types.ConfirmationAwaiting,
		Fingerprint:    fp,
		RequestedTurn:  userTurn,
		CreatedAt:      now,
	}
	if err := g.save(ctx, rec); err != nil {
		return types.Confirmation{}, err
	}
	c.open = rec

	g.logger.Info("confirmation requested",
		zap.String("conversation_id", conversationID),
		zap.String("tool_call_id", rec.ToolCallID),
		zap.String("tool", rec.Tool))
	return rec.Clone(), nil
}

// Pending returns the open request (awaiting or confirmed), if any.
func (g *Gate) Pending(ctx context.Context, conversationID string) (types.Confirmation, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.load(ctx, conversationID)
	if err != nil || c.open == nil {
		return types.Confirmation{}, false, err
	}
	return c.open.Clone(), true, nil
}

// State returns the conversation's current gate state.
func (g *Gate) State(ctx context.Context, conversationID string) (types.ConfirmationState, error) {
	p, ok, err := g.Pending(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if !ok {
		return types.ConfirmationIdle, nil
	}
	return p.State, nil
}

// Resolve classifies reply against the awaiting request. Assent moves it to
// Confirmed; refusal to Rejected, after which the conversation is Idle;
// an ambiguous reply leaves it awaiting with Reprompt set. The reply must
// come from a later user turn than the request.
func (g *Gate) Resolve(ctx context.Context, conversationID, reply string, userTurn int) (Resolution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.load(ctx, conversationID)
	if err != nil {
		return Resolution{}, err
	}
	rec := c.open
	if rec == nil || rec.State != types.ConfirmationAwaiting {
		return Resolution{}, ErrNoPending
	}
	if userTurn <= rec.RequestedTurn {
		return Resolution{}, &ConfirmationProtocolViolation{
			ConversationID: conversationID,
			ToolCallID:     rec.ToolCallID,
			Tool:           rec.Tool,
			Reason:         "confirmation resolved in the turn that requested it",
		}
	}

	verdict := g.classify.Classify(reply)
	res := Resolution{Verdict: verdict}

	switch verdict {
	case Assent:
		rec.State = types.ConfirmationConfirmed
		rec.ResolvedTurn = userTurn
		if err := g.save(ctx, rec); err != nil {
			rec.State = types.ConfirmationAwaiting
			return Resolution{}, err
		}
	case Refusal:
		rec.State = types.ConfirmationRejected
		rec.ResolvedTurn = userTurn
		if err := g.save(ctx, rec); err != nil {
			rec.State = types.ConfirmationAwaiting
			return Resolution{}, err
		}
		c.rejected[rec.Fingerprint] = userTurn
		c.open = nil
	default:
		res.Reprompt = true
	}
	res.Action = rec.Clone()

	g.logger.Info("confirmation resolved",
		zap.String("conversation_id", conversationID),
		zap.String("tool_call_id", rec.ToolCallID),
		zap.String("state", string(rec.State)),
		zap.Stringer("verdict", verdict))
	return res, nil
}

// Authorize is the guard every sensitive handler passes through. It returns
// the confirmed action for toolCallID, or a ConfirmationProtocolViolation.
func (g *Gate) Authorize(ctx context.Context, conversationID, toolCallID string) (types.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.load(ctx, conversationID)
	if err != nil {
		return types.Confirmation{}, err
	}
	rec := c.open
	switch {
	case rec == nil || rec.ToolCallID != toolCallID:
		return types.Confirmation{}, &ConfirmationProtocolViolation{
			ConversationID: conversationID,
			ToolCallID:     toolCallID,
			Reason:         "no confirmation request for this call",
		}
	case rec.State != types.ConfirmationConfirmed:
		return types.Confirmation{}, &ConfirmationProtocolViolation{
			ConversationID: conversationID,
			ToolCallID:     toolCallID,
			Tool:           rec.Tool,
			Reason:         fmt.Sprintf("action is %s, not confirmed", rec.State),
		}
	}
	return rec.Clone(), nil
}

// MarkExecuted closes a confirmed request after its tool ran (Confirmed → Idle).
func (g *Gate) MarkExecuted(ctx context.Context, conversationID, toolCallID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.load(ctx, conversationID)
	if err != nil {
		return err
	}
	rec := c.open
	if rec == nil || rec.ToolCallID != toolCallID || rec.State != types.ConfirmationConfirmed {
		return &ConfirmationProtocolViolation{
			ConversationID: conversationID,
			ToolCallID:     toolCallID,
			Reason:         "mark executed without a confirmed action",
		}
	}
	rec.State = types.ConfirmationExecuted
	if err := g.save(ctx, rec); err != nil {
		rec.State = types.ConfirmationConfirmed
		return err
	}
	c.open = nil
	g.logger.Info("confirmed action executed",
		zap.String("conversation_id", conversationID),
		zap.String("tool_call_id", toolCallID),
		zap.String("tool", rec.Tool))
	return nil
}

// Revoke closes a confirmed action that may no longer run (Confirmed → Rejected).
func (g *Gate) Revoke(ctx context.Context, conversationID, toolCallID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.load(ctx, conversationID)
	if err != nil {
		return err
	}
	rec := c.open
	if rec == nil || rec.ToolCallID != toolCallID || rec.State != types.ConfirmationConfirmed {
		return &ConfirmationProtocolViolation{
			ConversationID: conversationID,
			ToolCallID:     toolCallID,
			Reason:         "revoke without a confirmed action",
		}
	}
	rec.State = types.ConfirmationRejected
	if err := g.save(ctx, rec); err != nil {
		rec.State = types.ConfirmationConfirmed
		return err
	}
	c.open = nil
	g.logger.Info("confirmed action revoked",
		zap.String("conversation_id", conversationID),
		zap.String("tool_call_id", toolCallID),
		zap.String("tool", rec.Tool))
	return nil
}

// Withdraw retracts an awaiting request opened by a turn that then failed.
// It is a no-op when toolCallID is not the awaiting request.
func (g *Gate) Withdraw(ctx context.Context, conversationID, toolCallID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, err := g.load(ctx, conversationID)
	if err != nil {
		return err
	}
	rec := c.open
	if rec == nil || rec.ToolCallID != toolCallID || rec.State != types.ConfirmationAwaiting {
		return nil
	}
	rec.State = types.ConfirmationSuperseded
	if err := g.save(ctx, rec); err != nil {
		rec.State = types.ConfirmationAwaiting
		return err
	}
	c.open = nil
	g.logger.Info("confirmation withdrawn",
		zap.String("conversation_id", conversationID),
		zap.String("tool_call_id", toolCallID))
	return nil
}

// Forget drops cached state for a conversation. The ledger is untouched.
func (g *Gate) Forget(conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.convs, conversationID)
}

package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jg-phare/gatekeep/pkg/types"
)

const conv = "conv-1"

func transferAction(id string) Action {
	return Action{
		ToolCallID: id,
		Tool:       "transferSol",
		Args:       map[string]any{"to": "X", "amount": 5.0},
		Message:    "Send 5 SOL to X",
	}
}

func TestGate_AssentFlow(t *testing.T) {
	ctx := context.Background()
	g := New()

	state, err := g.State(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationIdle, state)

	rec, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationAwaiting, rec.State)

	// Not yet confirmed: the guard refuses.
	_, err = g.Authorize(ctx, conv, "call_1")
	var violation *ConfirmationProtocolViolation
	require.True(t, errors.As(err, &violation))

	res, err := g.Resolve(ctx, conv, "yes, confirm", 2)
	require.NoError(t, err)
	assert.Equal(t, Assent, res.Verdict)
	assert.False(t, res.Reprompt)
	assert.Equal(t, types.ConfirmationConfirmed, res.Action.State)

	action, err := g.Authorize(ctx, conv, "call_1")
	require.NoError(t, err)
	assert.Equal(t, "transferSol", action.Tool)
	assert.Equal(t, 5.0, action.Args["amount"])

	require.NoError(t, g.MarkExecuted(ctx, conv, "call_1"))
	state, err = g.State(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationIdle, state)

	// Executed actions cannot be authorized again.
	_, err = g.Authorize(ctx, conv, "call_1")
	assert.True(t, errors.As(err, &violation))
}

func TestGate_RefusalFlow(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	res, err := g.Resolve(ctx, conv, "no, cancel", 2)
	require.NoError(t, err)
	assert.Equal(t, Refusal, res.Verdict)
	assert.Equal(t, types.ConfirmationRejected, res.Action.State)

	state, err := g.State(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationIdle, state, "Rejected returns to Idle immediately")

	_, err = g.Authorize(ctx, conv, "call_1")
	assert.Error(t, err)
}

func TestGate_NoReRequestAfterRejectionInSameTurn(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)
	_, err = g.Resolve(ctx, conv, "no", 2)
	require.NoError(t, err)

	// The model tries again while answering the refusal.
	_, err = g.Request(ctx, conv, transferAction("call_2"), 2)
	assert.ErrorIs(t, err, ErrAlreadyRejected)

	// A different action is fine.
	other := transferAction("call_3")
	other.Args = map[string]any{"to": "X", "amount": 1.0}
	_, err = g.Request(ctx, conv, other, 2)
	require.NoError(t, err)

	// After a new user message the same action may be requested again.
	_, err = g.Request(ctx, conv, transferAction("call_4"), 3)
	require.NoError(t, err)
}

func TestGate_AmbiguousReplyReprompts(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	res, err := g.Resolve(ctx, conv, "hmm, how much is that in USD?", 2)
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, res.Verdict)
	assert.True(t, res.Reprompt)

	state, err := g.State(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationAwaiting, state)

	res, err = g.Resolve(ctx, conv, "ok go ahead", 3)
	require.NoError(t, err)
	assert.Equal(t, Assent, res.Verdict)
}

func TestGate_ResolveInRequestingTurnIsViolation(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	_, err = g.Resolve(ctx, conv, "yes", 1)
	var violation *ConfirmationProtocolViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "call_1", violation.ToolCallID)
}

func TestGate_ResolveWithoutPending(t *testing.T) {
	_, err := New().Resolve(context.Background(), conv, "yes", 1)
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestGate_NewRequestSupersedes(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	g := New(WithLedger(ledger))

	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	swap := Action{ToolCallID: "call_2", Tool: "swapTokens", Args: map[string]any{"amount": 1.0}}
	_, err = g.Request(ctx, conv, swap, 2)
	require.NoError(t, err)

	p, ok, err := g.Pending(ctx, conv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "call_2", p.ToolCallID)

	recs, err := ledger.LoadConfirmations(ctx, conv)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, types.ConfirmationSuperseded, recs[0].State)
	assert.Equal(t, types.ConfirmationAwaiting, recs[1].State)
}

func TestGate_RestoresFromLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	g1 := New(WithLedger(ledger))
	_, err := g1.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)
	_, err = g1.Resolve(ctx, conv, "no", 2)
	require.NoError(t, err)
	_, err = g1.Request(ctx, conv, Action{ToolCallID: "call_2", Tool: "swapTokens"}, 2)
	require.NoError(t, err)

	// A fresh gate over the same ledger sees the awaiting request and the
	// refusal.
	g2 := New(WithLedger(ledger))
	p, ok, err := g2.Pending(ctx, conv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "call_2", p.ToolCallID)

	_, err = g2.Request(ctx, conv, transferAction("call_3"), 2)
	assert.ErrorIs(t, err, ErrAlreadyRejected)
}

func TestGate_MarkExecutedRequiresConfirmed(t *testing.T) {
	ctx := context.Background()
	g := New()
	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	err = g.MarkExecuted(ctx, conv, "call_1")
	var violation *ConfirmationProtocolViolation
	assert.True(t, errors.As(err, &violation))
}

func TestGate_RequestValidation(t *testing.T) {
	_, err := New().Request(context.Background(), conv, Action{Tool: "transferSol"}, 1)
	assert.Error(t, err)
}

func TestGate_CustomClassifier(t *testing.T) {
	ctx := context.Background()
	g := New(WithClassifier(ClassifierFunc(func(string) Verdict { return Assent })))
	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	res, err := g.Resolve(ctx, conv, "whatever", 2)
	require.NoError(t, err)
	assert.Equal(t, Assent, res.Verdict)
}

func TestFingerprint_CanonicalArgs(t *testing.T) {
	a := Fingerprint("transferSol", map[string]any{"to": "X", "amount": 5.0})
	b := Fingerprint("transferSol", map[string]any{"amount": 5, "to": "X"})
	c := Fingerprint("transferToken", map[string]any{"to": "X", "amount": 5.0})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGate_Withdraw(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	g := New(WithLedger(ledger))

	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	require.NoError(t, g.Withdraw(ctx, conv, "call_other"))
	state, err := g.State(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationAwaiting, state)

	require.NoError(t, g.Withdraw(ctx, conv, "call_1"))
	state, err = g.State(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationIdle, state)

	recs, err := ledger.LoadConfirmations(ctx, conv)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, types.ConfirmationSuperseded, recs[0].State)

	// A withdrawn request was never refused, so it can be asked again.
	_, err = g.Request(ctx, conv, transferAction("call_2"), 1)
	assert.NoError(t, err)
}

func TestGate_Revoke(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	g := New(WithLedger(ledger))

	_, err := g.Request(ctx, conv, transferAction("call_1"), 1)
	require.NoError(t, err)

	var violation *ConfirmationProtocolViolation
	assert.True(t, errors.As(g.Revoke(ctx, conv, "call_1"), &violation), "awaiting is not revocable")

	_, err = g.Resolve(ctx, conv, "yes", 2)
	require.NoError(t, err)
	require.NoError(t, g.Revoke(ctx, conv, "call_1"))

	state, err := g.State(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationIdle, state)
	_, err = g.Authorize(ctx, conv, "call_1")
	assert.True(t, errors.As(err, &violation))

	recs, err := ledger.LoadConfirmations(ctx, conv)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, types.ConfirmationRejected, recs[0].State)
}

package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jg-phare/gatekeep/pkg/gate"
	"github.com/jg-phare/gatekeep/pkg/llm/llmtest"
	"github.com/jg-phare/gatekeep/pkg/orchestrator"
	"github.com/jg-phare/gatekeep/pkg/permission"
	"github.com/jg-phare/gatekeep/pkg/store"
	"github.com/jg-phare/gatekeep/pkg/tools"
	"github.com/jg-phare/gatekeep/pkg/transcript"
	"github.com/jg-phare/gatekeep/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		// started by an init in the genai dependency tree
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

const (
	testWallet    = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testRecipient = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

type harness struct {
	mgr      *Manager
	client   *llmtest.Client
	store    *store.Store
	wallet   *tools.MemoryWallet
	registry *tools.Registry

	mu   sync.Mutex
	pick []string // names the selector infers
}

type option func(*Config)

func newHarness(t *testing.T, extra []tools.Tool, opts ...option) *harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	wallet := tools.NewMemoryWallet(testWallet, map[string]float64{tools.NativeMint: 10})
	reg, err := tools.DefaultRegistry(tools.Deps{
		Directory: tools.NewStaticTokenDirectory(),
		Quotes:    &tools.StaticQuotes{Prices: map[string]float64{tools.NativeMint: 150}},
		Wallet:    wallet,
		Scheduler: db,
	})
	require.NoError(t, err)
	for _, tool := range extra {
		require.NoError(t, reg.Register(tool))
	}

	h := &harness{client: llmtest.NewClient(), store: db, wallet: wallet, registry: reg}
	orch, err := orchestrator.New(orchestrator.Config{
		Catalog: reg,
		Selector: orchestrator.SelectorFunc(func(context.Context, orchestrator.SelectionRequest) ([]string, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.pick, nil
		}),
	})
	require.NoError(t, err)

	cfg := Config{
		Registry:      reg,
		Selector:      orch,
		Client:        h.client,
		Store:         db,
		WalletAddress: testWallet,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.mgr, err = NewManager(cfg)
	require.NoError(t, err)
	return h
}

func (h *harness) offer(names ...string) {
	h.mu.Lock()
	h.pick = names
	h.mu.Unlock()
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s, err := h.mgr.Create(context.Background(), "user-1", "test")
	require.NoError(t, err)
	return s
}

func (h *harness) state(t *testing.T, s *Session) types.ConfirmationState {
	t.Helper()
	st, err := h.mgr.cfg.Gate.State(context.Background(), s.ID())
	require.NoError(t, err)
	return st
}

func transferArgs(amount float64) map[string]any {
	return map[string]any{"to": testRecipient, "amount": amount}
}

func askTransfer(id string, amount float64) llmtest.Reply {
	return llmtest.ToolCalls("", llmtest.Call{
		ID:   id,
		Name: tools.ConfirmationTool,
		Args: map[string]any{
			"message": "Send SOL to 7xKX...",
			"tool":    tools.TransferSolName,
			"args":    transferArgs(amount),
		},
	})
}

// awaitTransfer drives a conversation to the point where a 1 SOL transfer
// awaits the user's answer.
func (h *harness) awaitTransfer(t *testing.T) *Session {
	t.Helper()
	s := h.session(t)
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(askTransfer("call_ask", 1))
	res, err := s.Send(context.Background(), "send 1 SOL to "+testRecipient)
	require.NoError(t, err)
	require.Equal(t, types.ConfirmationAwaiting, res.State)
	h.offer()
	return s
}

func toolNames(h *harness, i int) []string {
	req := h.client.Requests()[i]
	var names []string
	for _, d := range req.Tools {
		names = append(names, d.Function.Name)
	}
	return names
}

func TestSend_SensitiveRequestAwaitsConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(askTransfer("call_ask", 1))

	res, err := s.Send(ctx, "send 1 SOL to "+testRecipient)
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationAwaiting, res.State)
	require.NotNil(t, res.Pending)
	assert.Equal(t, "call_ask", res.Pending.ToolCallID)
	assert.Equal(t, tools.TransferSolName, res.Pending.Tool)
	assert.Equal(t, []string{tools.SearchTokenName, tools.TransferSolName, tools.ConfirmationTool}, res.ToolsOffered)
	assert.Equal(t, res.ToolsOffered, toolNames(h, 0))
	assert.Empty(t, res.Executed)
	assert.Empty(t, h.wallet.Transfers())
	assert.Contains(t, res.Reply, "Send SOL to 7xKX...")

	msgs, err := h.store.GetMessages(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	require.Len(t, msgs[1].ToolInvocations, 1)
	assert.Equal(t, types.StateCall, msgs[1].ToolInvocations[0].State)
	assert.Equal(t, res.Reply, msgs[2].Content)
}

func TestSend_AssentExecutesInLaterTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)
	h.client.Push(llmtest.Text("Sent 1 SOL."))

	res, err := s.Send(ctx, "yes")
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationExecuted, res.State)
	assert.Equal(t, "Sent 1 SOL.", res.Reply)
	assert.Nil(t, res.ToolsOffered)
	require.Len(t, res.Executed, 1)
	assert.Equal(t, tools.TransferSolName, res.Executed[0].ToolName)
	assert.Equal(t, "call_ask_exec", res.Executed[0].ToolCallID)
	require.Len(t, h.wallet.Transfers(), 1)
	assert.Equal(t, 1.0, h.wallet.Transfers()[0].Amount)

	// the summary call offers no tools
	assert.Empty(t, toolNames(h, 1))
	assert.Equal(t, types.ConfirmationIdle, h.state(t, s))

	msgs, err := h.store.GetMessages(ctx, s.ID())
	require.NoError(t, err)
	ask := msgs[1].ToolInvocations[0]
	require.True(t, ask.HasResult())
	assert.Equal(t, "confirmed", ask.Result.Data.(map[string]any)["status"])
	exec, ok := msgs[len(msgs)-2].Invocation("call_ask_exec")
	require.True(t, ok)
	assert.False(t, exec.Result.IsError())
}

func TestSend_RefusalCancels(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)
	h.client.Push(llmtest.Text("Okay, cancelled."))

	res, err := s.Send(ctx, "no, cancel that")
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationIdle, res.State)
	assert.Equal(t, "Okay, cancelled.", res.Reply)
	assert.Empty(t, h.wallet.Transfers())

	history := s.History()
	ask, ok := history[1].Invocation("call_ask")
	require.True(t, ok)
	require.True(t, ask.HasResult())
	assert.Equal(t, "rejected", ask.Result.Data.(map[string]any)["status"])

	msgs, err := h.store.GetMessages(ctx, s.ID())
	require.NoError(t, err)
	stored, _ := msgs[1].Invocation("call_ask")
	assert.True(t, stored.HasResult())
}

func TestSend_RefusedActionNotAskedAgainSameTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(askTransfer("call_again", 1), llmtest.Text("Understood."))

	res, err := s.Send(ctx, "no")
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationIdle, res.State)
	assert.Equal(t, "Understood.", res.Reply)
	again, ok := res.Messages[0].Invocation("call_again")
	require.True(t, ok)
	require.True(t, again.HasResult())
	assert.Contains(t, again.Result.Error, "declined")
}

func TestSend_AmbiguousReplyReprompts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)
	calls := len(h.client.Requests())

	res, err := s.Send(ctx, "hmm, how much is that in USD?")
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationAwaiting, res.State)
	assert.Contains(t, res.Reply, "Send SOL to 7xKX...")
	assert.Len(t, h.client.Requests(), calls)
	assert.Empty(t, h.wallet.Transfers())

	h.client.Push(llmtest.Text("Done."))
	res, err = s.Send(ctx, "ok go ahead")
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationExecuted, res.State)
	assert.Len(t, h.wallet.Transfers(), 1)
}

func TestSend_ConditionalAssentReprompts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)

	res, err := s.Send(ctx, "yes, but make it 2 SOL")
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationAwaiting, res.State)
	assert.Empty(t, h.wallet.Transfers())
}

func TestSend_AssentRechecksPermissions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)
	require.NoError(t, h.mgr.cfg.Permissions.AddSessionRule(permission.Rule{
		Tool:     tools.TransferSolName,
		Behavior: permission.BehaviorDeny,
	}))
	h.client.Push(llmtest.Text("That transfer is blocked."))

	res, err := s.Send(ctx, "yes")
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationIdle, res.State)
	assert.Empty(t, res.Executed)
	assert.Empty(t, h.wallet.Transfers())
	assert.Equal(t, types.ConfirmationIdle, h.state(t, s))

	ask, ok := s.History()[1].Invocation("call_ask")
	require.True(t, ok)
	require.True(t, ask.HasResult())
	assert.True(t, ask.Result.IsError())

	confs, err := h.store.LoadConfirmations(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, confs, 1)
	assert.Equal(t, types.ConfirmationRejected, confs[0].State)
}

func TestSend_DirectSensitiveCallIsGated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(llmtest.ToolCalls("", llmtest.Call{ID: "call_direct", Name: tools.TransferSolName, Args: transferArgs(2)}))

	res, err := s.Send(ctx, "send 2 SOL to "+testRecipient)
	require.NoError(t, err)

	assert.Empty(t, h.wallet.Transfers())
	assert.Equal(t, types.ConfirmationAwaiting, res.State)
	require.NotNil(t, res.Pending)
	assert.Equal(t, "call_direct", res.Pending.ToolCallID)
	assert.Contains(t, res.Reply, "transferSol")

	h.offer()
	h.client.Push(llmtest.Text("Sent."))
	res, err = s.Send(ctx, "yes")
	require.NoError(t, err)
	require.Len(t, h.wallet.Transfers(), 1)
	assert.Equal(t, 2.0, h.wallet.Transfers()[0].Amount)
	assert.Equal(t, "call_direct_exec", res.Executed[0].ToolCallID)
}

func TestSend_SensitiveCallBesideConfirmationDoesNotRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(llmtest.ToolCalls("Sending now.",
		llmtest.Call{ID: "call_ask", Name: tools.ConfirmationTool, Args: map[string]any{
			"message": "Send 1 SOL", "tool": tools.TransferSolName, "args": transferArgs(1),
		}},
		llmtest.Call{ID: "call_sneaky", Name: tools.TransferSolName, Args: transferArgs(1)},
	))

	res, err := s.Send(ctx, "send 1 SOL to "+testRecipient)
	require.NoError(t, err)

	assert.Empty(t, h.wallet.Transfers())
	assert.Equal(t, "call_ask", res.Pending.ToolCallID)
	sneaky, ok := res.Messages[0].Invocation("call_sneaky")
	require.True(t, ok)
	assert.True(t, sneaky.Result.IsError())
}

func TestSend_DegenModeRunsImmediately(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	require.NoError(t, s.SetDegenMode(ctx, true))
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(
		llmtest.ToolCalls("", llmtest.Call{ID: "call_t", Name: tools.TransferSolName, Args: transferArgs(1)}),
		llmtest.Text("Sent 1 SOL."),
	)

	res, err := s.Send(ctx, "send 1 SOL to "+testRecipient)
	require.NoError(t, err)

	assert.Equal(t, types.ConfirmationIdle, res.State)
	assert.NotContains(t, res.ToolsOffered, tools.ConfirmationTool)
	require.Len(t, h.wallet.Transfers(), 1)
	require.Len(t, res.Executed, 1)
	assert.Equal(t, "Sent 1 SOL.", res.Reply)

	prefs, err := h.store.GetPreferences(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, prefs.DegenMode)
}

func TestSend_DegenToggleReachesOtherSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s1 := h.session(t)
	s2 := h.session(t)
	require.NoError(t, s1.SetDegenMode(ctx, true))

	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(
		llmtest.ToolCalls("", llmtest.Call{ID: "call_a", Name: tools.TransferSolName, Args: transferArgs(1)}),
		llmtest.Text("Sent 1 SOL."),
	)
	res, err := s2.Send(ctx, "send 1 SOL to "+testRecipient)
	require.NoError(t, err)
	require.Len(t, res.Executed, 1)
	assert.True(t, s2.Degen())

	require.NoError(t, s1.SetDegenMode(ctx, false))
	h.client.Push(llmtest.ToolCalls("", llmtest.Call{ID: "call_b", Name: tools.TransferSolName, Args: transferArgs(2)}))
	res, err = s2.Send(ctx, "send 2 SOL to "+testRecipient)
	require.NoError(t, err)

	assert.False(t, s2.Degen())
	assert.Equal(t, types.ConfirmationAwaiting, res.State)
	assert.Empty(t, res.Executed)
	assert.Len(t, h.wallet.Transfers(), 1)
}

func TestSend_ToolFailureIsAResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(askTransfer("call_big", 100))
	_, err := s.Send(ctx, "send 100 SOL to "+testRecipient)
	require.NoError(t, err)

	h.offer()
	h.client.Push(llmtest.Text("The transfer failed: insufficient funds."))
	res, err := s.Send(ctx, "yes")
	require.NoError(t, err)

	require.Len(t, res.Executed, 1)
	assert.Equal(t, tools.ErrInsufficientFunds.Error(), res.Executed[0].Result.Error)
	assert.Equal(t, types.ConfirmationExecuted, res.State)
	assert.Empty(t, h.wallet.Transfers())
}

type brokenTool struct{ sleep bool }

func (b *brokenTool) Name() string {
	if b.sleep {
		return "slowLookup"
	}
	return "brokenLookup"
}
func (b *brokenTool) Description() string         { return "test tool" }
func (b *brokenTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (b *brokenTool) RequiresConfirmation() bool  { return false }

func (b *brokenTool) Execute(ctx context.Context, _ map[string]any) (tools.ToolOutput, error) {
	if b.sleep {
		<-ctx.Done()
		return tools.ToolOutput{}, ctx.Err()
	}
	return tools.ToolOutput{}, errors.New("upstream unavailable")
}

func TestSend_HandlerErrorAndTimeoutBecomeResults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []tools.Tool{&brokenTool{}, &brokenTool{sleep: true}}, func(c *Config) {
		c.ToolTimeout = 20 * time.Millisecond
	})
	s := h.session(t)
	h.offer("brokenLookup", "slowLookup")
	h.client.Push(
		llmtest.ToolCalls("",
			llmtest.Call{ID: "call_b", Name: "brokenLookup"},
			llmtest.Call{ID: "call_s", Name: "slowLookup"},
		),
		llmtest.Text("Both lookups failed."),
	)

	res, err := s.Send(ctx, "look things up")
	require.NoError(t, err)

	calls := res.Messages[0]
	broken, _ := calls.Invocation("call_b")
	assert.Equal(t, "upstream unavailable", broken.Result.Error)
	slow, _ := calls.Invocation("call_s")
	assert.Contains(t, slow.Result.Error, "timed out")
	assert.Equal(t, "Both lookups failed.", res.Reply)
}

func TestSend_LookupsRunAndUnofferedToolsAreRefused(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	h.offer(tools.GetTokenPriceName, tools.GetWalletBalanceName)
	h.client.Push(
		llmtest.ToolCalls("",
			llmtest.Call{ID: "call_p", Name: tools.GetTokenPriceName, Args: map[string]any{"token": "SOL"}},
			llmtest.Call{ID: "call_b", Name: tools.GetWalletBalanceName},
			llmtest.Call{ID: "call_x", Name: tools.SwapTokensName, Args: map[string]any{}},
		),
		llmtest.Text("You hold 10 SOL worth $1500."),
	)

	res, err := s.Send(ctx, "what is my SOL worth?")
	require.NoError(t, err)

	calls := res.Messages[0]
	price, _ := calls.Invocation("call_p")
	assert.Equal(t, 150.0, price.Result.Data.(map[string]any)["priceUsd"])
	bal, _ := calls.Invocation("call_b")
	assert.Equal(t, 10.0, bal.Result.Data.(map[string]any)["balance"])
	swap, _ := calls.Invocation("call_x")
	assert.Contains(t, swap.Result.Error, "not available")
	assert.Len(t, res.Executed, 2)
	assert.Equal(t, 2, res.Steps)

	// the second call sees every result
	second := h.client.Requests()[1]
	var toolMsgs int
	for _, m := range second.Messages {
		if m.Role == "tool" {
			toolMsgs++
		}
	}
	assert.Equal(t, 3, toolMsgs)
}

func TestSend_UnknownToolAbortsTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	h.client.Push(llmtest.ToolCalls("", llmtest.Call{ID: "call_u", Name: "launchRocket"}))

	_, err := s.Send(ctx, "launch")
	var unknown *tools.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "launchRocket", unknown.Name)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, types.RoleUser, history[0].Role)

	msgs, err := h.store.GetMessages(ctx, s.ID())
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSend_ModelFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	boom := errors.New("boom")
	h.client.Push(llmtest.Fail(boom))

	_, err := s.Send(ctx, "hello")
	require.ErrorIs(t, err, boom)
	assert.Len(t, s.History(), 1)

	h.client.Push(llmtest.Text("Hi!"))
	res, err := s.RunTurn(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hi!", res.Reply)
	assert.Len(t, s.History(), 2)
}

func TestSend_ModelTimeout(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) { c.ModelTimeout = 20 * time.Millisecond })
	s := h.session(t)
	h.client.Push(llmtest.Hang())

	_, err := s.Send(context.Background(), "hello")
	var te *types.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "model", te.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSend_FailedPersistWithdrawsRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, func(c *Config) { c.Gate = gate.New() })
	s := h.session(t)
	h.offer(tools.TransferSolName, tools.ConfirmationTool)
	h.client.Push(askTransfer("call_ask", 1))
	require.NoError(t, h.store.Close())

	_, err := s.Send(ctx, "send 1 SOL to "+testRecipient)
	require.ErrorIs(t, err, store.ErrStore)

	assert.Equal(t, types.ConfirmationIdle, h.state(t, s))
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, types.RoleUser, history[0].Role)
}

func TestRunTurn_ConfirmedRetryDoesNotRepeatTransfer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)
	h.client.Push(llmtest.Fail(errors.New("summary failed")))

	_, err := s.Send(ctx, "yes")
	require.Error(t, err)
	require.Len(t, h.wallet.Transfers(), 1)
	assert.Equal(t, types.ConfirmationConfirmed, h.state(t, s))

	h.client.Push(llmtest.Text("Sent 1 SOL."))
	res, err := s.RunTurn(ctx)
	require.NoError(t, err)

	assert.Len(t, h.wallet.Transfers(), 1)
	assert.Equal(t, types.ConfirmationExecuted, res.State)
	require.Len(t, res.Executed, 1)
	assert.Equal(t, h.wallet.Transfers()[0].Signature, res.Executed[0].Result.Data.(map[string]any)["signature"])
}

func TestManager_OpenRestoresPendingConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.awaitTransfer(t)

	// a fresh manager over the same store, as after a restart
	mgr, err := NewManager(Config{
		Registry: h.registry,
		Selector: h.mgr.cfg.Selector,
		Client:   h.client,
		Store:    h.store,
	})
	require.NoError(t, err)

	h.client.Push(llmtest.Text("Sent."))
	res, err := mgr.Send(ctx, s.ID(), "yes")
	require.NoError(t, err)
	assert.Equal(t, types.ConfirmationExecuted, res.State)
	assert.Len(t, h.wallet.Transfers(), 1)

	reopened, err := mgr.Open(ctx, s.ID())
	require.NoError(t, err)
	assert.Len(t, reopened.History(), 6)
}

func TestManager_OpenUnknownConversation(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.mgr.Open(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSession_ModelSelection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	s := h.session(t)
	assert.Equal(t, "test-model", s.Model())

	require.NoError(t, s.SetModel(ctx, "gpt-4o"))
	h.client.Push(llmtest.Text("hi"))
	_, err := s.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", h.client.Requests()[0].Model)

	conv, err := h.store.GetConversation(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", conv.Model)
}

func TestRunTurn_RequiresUserMessage(t *testing.T) {
	h := newHarness(t, nil)
	s := h.session(t)
	_, err := s.RunTurn(context.Background())
	require.ErrorIs(t, err, ErrNoUserMessage)

	_, err = s.Send(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestToChatMessages_PairsEveryCall(t *testing.T) {
	pending := types.NewAssistantMessage("c", "", []types.ToolInvocation{
		types.NewCall("call_1", tools.ConfirmationTool, nil),
	})
	done := types.NewAssistantMessage("c", "checking", []types.ToolInvocation{
		types.NewCall("call_2", tools.GetTokenPriceName, map[string]any{"token": "SOL"}),
	})
	done.AttachResult("call_2", types.DataResult(map[string]any{"priceUsd": 150}))

	msgs := toChatMessages([]types.Message{
		types.NewUserMessage("c", "hi"),
		pending,
		types.NewUserMessage("c", "price?"),
		done,
		types.NewAssistantMessage("c", "", nil),
	})

	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	assert.Equal(t, []string{"user", "assistant", "tool", "user", "assistant", "tool"}, roles)
	assert.Equal(t, pendingContent, msgs[2].Content)
	assert.JSONEq(t, `{"data":{"priceUsd":150}}`, msgs[5].Content.(string))
}

func TestSend_HistoryFitsContextWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, func(c *Config) { c.ContextLimit = 200 })
	s := h.session(t)

	long := strings.Repeat("tell me about tokens ", 40)
	h.client.Push(llmtest.Text("sure"), llmtest.Text("again"))
	_, err := s.Send(ctx, long)
	require.NoError(t, err)
	_, err = s.Send(ctx, "and now?")
	require.NoError(t, err)

	reqs := h.client.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, long, reqs[0].Messages[1].Content, "an oversized last turn is still sent")

	var contents []any
	for _, m := range reqs[1].Messages[1:] {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []any{"and now?"}, contents)
	assert.Len(t, s.History(), 4, "trimming only affects the request")
}

func TestSend_ExecutionReachesTranscriptBeforeReply(t *testing.T) {
	ctx := context.Background()
	log, err := transcript.Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer log.Close()

	h := newHarness(t, nil, func(c *Config) { c.Transcript = log })
	s := h.awaitTransfer(t)
	h.client.Push(llmtest.Text("Sent 1 SOL."))
	_, err = s.Send(ctx, "yes")
	require.NoError(t, err)

	// No Close yet: only synchronously written events are guaranteed on disk.
	events, err := log.Load(s.ID())
	require.NoError(t, err)
	var kinds []transcript.EventType
	for _, ev := range events {
		if transcript.Durable(ev.Type) {
			kinds = append(kinds, ev.Type)
		}
	}
	assert.Equal(t, []transcript.EventType{
		transcript.EventConfirmationResolved,
		transcript.EventToolExecuted,
	}, kinds)
}

func TestSend_SameToolCallIDInTwoConversations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	for i, want := range []int{1, 2} {
		s := h.awaitTransfer(t)
		h.client.Push(llmtest.Text("Sent 1 SOL."))
		res, err := s.Send(ctx, "yes")
		require.NoError(t, err, "conversation %d", i)
		assert.Equal(t, types.ConfirmationExecuted, res.State)
		require.Len(t, h.wallet.Transfers(), want, "each assent moves funds once")

		h.client.Push(llmtest.Text("Anything else?"))
		_, err = s.Send(ctx, "thanks")
		require.NoError(t, err, "later turns still persist")

		msgs, err := h.store.GetMessages(ctx, s.ID())
		require.NoError(t, err)
		ask, ok := msgs[1].Invocation("call_ask")
		require.True(t, ok)
		assert.True(t, ask.HasResult())
	}
}

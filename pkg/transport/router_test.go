package transport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jg-phare/gatekeep/pkg/chat"
	"github.com/jg-phare/gatekeep/pkg/llm/llmtest"
	"github.com/jg-phare/gatekeep/pkg/orchestrator"
	"github.com/jg-phare/gatekeep/pkg/store"
	"github.com/jg-phare/gatekeep/pkg/tools"
	"github.com/jg-phare/gatekeep/pkg/types"
)

const recipient = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type fixture struct {
	mgr    *chat.Manager
	client *llmtest.Client
	wallet *tools.MemoryWallet
	store  *store.Store
}

func newFixture(t *testing.T, offered ...string) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "transport.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	wallet := tools.NewMemoryWallet("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", map[string]float64{tools.NativeMint: 5})
	reg, err := tools.DefaultRegistry(tools.Deps{
		Directory: tools.NewStaticTokenDirectory(),
		Wallet:    wallet,
		Scheduler: db,
	})
	require.NoError(t, err)
	orch, err := orchestrator.New(orchestrator.Config{
		Catalog: reg,
		Selector: orchestrator.SelectorFunc(func(context.Context, orchestrator.SelectionRequest) ([]string, error) {
			return offered, nil
		}),
	})
	require.NoError(t, err)

	client := llmtest.NewClient()
	mgr, err := chat.NewManager(chat.Config{Registry: reg, Selector: orch, Client: client, Store: db})
	require.NoError(t, err)
	return &fixture{mgr: mgr, client: client, wallet: wallet, store: db}
}

func runRouter(t *testing.T, f *fixture, user string) *ChannelTransport {
	t.Helper()
	tr := NewChannelTransport(8)
	done := make(chan error, 1)
	go func() { done <- NewRouter(tr, f.mgr, user, nil).Run(context.Background()) }()
	t.Cleanup(func() {
		tr.EndInput()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("router did not stop")
		}
	})
	return tr
}

func exchange(t *testing.T, tr *ChannelTransport, env Envelope) Envelope {
	t.Helper()
	require.NoError(t, tr.Send(env))
	got, ok := tr.Receive()
	require.True(t, ok, "transport closed")
	return got
}

func TestRouter_ConfirmationRoundTrip(t *testing.T) {
	f := newFixture(t, tools.TransferSolName, tools.ConfirmationTool)
	tr := runRouter(t, f, "user-1")

	opened := exchange(t, tr, Envelope{Kind: KindOpen, Title: "payments"})
	require.Equal(t, KindConversation, opened.Kind)
	require.NotEmpty(t, opened.ConversationID)
	assert.Equal(t, "payments", opened.Conversation.Title)
	assert.False(t, opened.Conversation.DegenMode)

	f.client.Push(llmtest.ToolCalls("Please confirm sending 1 SOL.", llmtest.Call{
		ID:   "call_ask",
		Name: tools.ConfirmationTool,
		Args: map[string]any{
			"message": "Send 1 SOL",
			"tool":    tools.TransferSolName,
			"args":    map[string]any{"to": recipient, "amount": 1},
		},
	}))
	turn := exchange(t, tr, Envelope{Kind: KindUserMessage, Text: "send 1 SOL to " + recipient})
	require.Equal(t, KindTurn, turn.Kind, turn.Error)
	assert.Equal(t, types.ConfirmationAwaiting, turn.Turn.State)
	assert.Equal(t, "Please confirm sending 1 SOL.", turn.Turn.Reply)
	require.NotNil(t, turn.Turn.Pending)
	assert.Equal(t, "call_ask", turn.Turn.Pending.ToolCallID)
	assert.Empty(t, f.wallet.Transfers())

	f.client.Push(llmtest.Text("Sent."))
	turn = exchange(t, tr, Envelope{Kind: KindUserMessage, ConversationID: opened.ConversationID, Text: "yes"})
	require.Equal(t, KindTurn, turn.Kind, turn.Error)
	assert.Equal(t, types.ConfirmationExecuted, turn.Turn.State)
	assert.Len(t, f.wallet.Transfers(), 1)
}

func TestRouter_SettingsAndErrors(t *testing.T) {
	f := newFixture(t)
	tr := runRouter(t, f, "user-1")

	on := true
	got := exchange(t, tr, Envelope{Kind: KindSetDegen, Enabled: &on})
	require.Equal(t, KindConversation, got.Kind)
	assert.True(t, got.Conversation.DegenMode)

	got = exchange(t, tr, Envelope{Kind: KindSetModel, Model: "gpt-4o"})
	assert.Equal(t, "gpt-4o", got.Conversation.Model)

	got = exchange(t, tr, Envelope{Kind: KindSetDegen})
	assert.Equal(t, KindError, got.Kind)

	got = exchange(t, tr, Envelope{Kind: "dance"})
	assert.Equal(t, KindError, got.Kind)
	assert.Contains(t, got.Error, "dance")

	// the scripted client has nothing left, so the turn fails
	got = exchange(t, tr, Envelope{Kind: KindUserMessage, Text: "hello"})
	assert.Equal(t, KindError, got.Kind)
	assert.Equal(t, chat.FailureMessage(), got.Text)
}

func TestRouter_RefusesOtherUsersConversation(t *testing.T) {
	f := newFixture(t)
	conv, err := f.store.CreateConversation(context.Background(), "someone-else", "")
	require.NoError(t, err)

	tr := runRouter(t, f, "user-1")
	got := exchange(t, tr, Envelope{Kind: KindOpen, ConversationID: conv.ID})
	assert.Equal(t, KindError, got.Kind)
	assert.Equal(t, ErrForbidden.Error(), got.Error)

	got = exchange(t, tr, Envelope{Kind: KindOpen, ConversationID: "missing"})
	assert.Equal(t, KindError, got.Kind)
}

func TestRouter_MalformedFrame(t *testing.T) {
	f := newFixture(t)
	tr := runRouter(t, f, "user-1")

	got := exchange(t, tr, decodeEnvelope([]byte("{not json")))
	assert.Equal(t, KindError, got.Kind)
	assert.Contains(t, got.Error, "malformed")
}

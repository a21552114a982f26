package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWalletAddr = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testRecipient  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

func testDeps() Deps {
	return Deps{
		Directory: NewStaticTokenDirectory(),
		Quotes: &StaticQuotes{Prices: map[string]float64{
			NativeMint: 150,
			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 1,
		}},
		Wallet:    NewMemoryWallet(testWalletAddr, map[string]float64{NativeMint: 10}),
		Scheduler: &MemoryScheduler{},
	}
}

func TestSearchToken(t *testing.T) {
	tool := &SearchTokenTool{Directory: NewStaticTokenDirectory()}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "bonk"})
	require.NoError(t, err)
	require.False(t, out.IsError)
	tokens := out.Data.(map[string]any)["tokens"].([]TokenInfo)
	require.Len(t, tokens, 1)
	assert.Equal(t, "BONK", tokens[0].Symbol)

	out, err = tool.Execute(context.Background(), map[string]any{"query": "doesnotexist"})
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestGetTokenPrice(t *testing.T) {
	deps := testDeps()
	tool := &GetTokenPriceTool{Directory: deps.Directory, Quotes: deps.Quotes}

	out, err := tool.Execute(context.Background(), map[string]any{"token": "SOL"})
	require.NoError(t, err)
	assert.Equal(t, 150.0, out.Data.(map[string]any)["priceUsd"])
}

func TestTransferSol(t *testing.T) {
	wallet := NewMemoryWallet(testWalletAddr, map[string]float64{NativeMint: 10})
	tool := &TransferSolTool{Wallet: wallet}

	out, err := tool.Execute(context.Background(), map[string]any{"to": testRecipient, "amount": 5.0})
	require.NoError(t, err)
	require.False(t, out.IsError, out.Message)
	assert.NotEmpty(t, out.Data.(map[string]any)["signature"])

	bal, _ := wallet.Balance(context.Background(), NativeMint)
	assert.Equal(t, 5.0, bal)
	require.Len(t, wallet.Transfers(), 1)

	out, err = tool.Execute(context.Background(), map[string]any{"to": testRecipient, "amount": 50.0})
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Message, "insufficient funds")

	out, err = tool.Execute(context.Background(), map[string]any{"to": "not-an-address", "amount": 1.0})
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Message, "invalid address")
}

func TestSwapTokens(t *testing.T) {
	deps := testDeps()
	tool := &SwapTokensTool{Directory: deps.Directory, Quotes: deps.Quotes, Wallet: deps.Wallet}

	out, err := tool.Execute(context.Background(), map[string]any{
		"inputToken": "SOL", "outputToken": "USDC", "amount": 2.0,
	})
	require.NoError(t, err)
	require.False(t, out.IsError, out.Message)
	bought := out.Data.(map[string]any)["bought"].(map[string]any)
	assert.Equal(t, 300.0, bought["amount"])

	out, err = tool.Execute(context.Background(), map[string]any{
		"inputToken": "SOL", "outputToken": "SOL", "amount": 1.0,
	})
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestCreateAction(t *testing.T) {
	sched := &MemoryScheduler{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tool := &CreateActionTool{Scheduler: sched, Now: func() time.Time { return now }}

	ctx := WithCaller(context.Background(), Caller{UserID: "user-1", ConversationID: "conv-1"})
	out, err := tool.Execute(ctx, map[string]any{"description": "buy BONK daily", "frequency": 86400.0})
	require.NoError(t, err)
	require.False(t, out.IsError, out.Message)

	actions := sched.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "user-1", actions[0].UserID)
	assert.Equal(t, "conv-1", actions[0].ConversationID)
	assert.Equal(t, now.Add(24*time.Hour), actions[0].NextRunAt)

	out, err = tool.Execute(ctx, map[string]any{"description": "too fast", "frequency": 10.0})
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestParseConfirmationRequest(t *testing.T) {
	req, err := ParseConfirmationRequest(map[string]any{
		"message": "Send 5 SOL",
		"tool":    TransferSolName,
		"args":    map[string]any{"to": testRecipient, "amount": 5.0},
	})
	require.NoError(t, err)
	assert.Equal(t, TransferSolName, req.Tool)
	assert.Equal(t, 5.0, req.Args["amount"])

	_, err = ParseConfirmationRequest(map[string]any{"message": "?"})
	assert.Error(t, err)
}

func TestToolOutputResult(t *testing.T) {
	assert.Equal(t, "boom", ToolOutput{IsError: true, Message: "boom"}.Result().Error)
	assert.Equal(t, 1, ToolOutput{Data: 1}.Result().Data)
	assert.NotEmpty(t, ToolOutput{IsError: true}.Result().Error)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(testRecipient))
	assert.False(t, ValidAddress("0OIl"))
	assert.False(t, ValidAddress(""))
}

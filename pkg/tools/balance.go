package tools

import "context"

// GetWalletBalanceTool reports the connected wallet's balance.
type GetWalletBalanceTool struct {
	Directory TokenDirectory
	Wallet    Wallet
}

func (b *GetWalletBalanceTool) Name() string { return GetWalletBalanceName }

func (b *GetWalletBalanceTool) Description() string {
	return "Get the connected wallet's balance of SOL or of a given token."
}

func (b *GetWalletBalanceTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"token": map[string]any{
				"type":        "string",
				"description": "Ticker symbol or mint address. Defaults to SOL.",
			},
		},
	}
}

func (b *GetWalletBalanceTool) RequiresConfirmation() bool { return false }

func (b *GetWalletBalanceTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	symbol := stringArg(input, "token")
	if symbol == "" {
		symbol = "SOL"
	}
	token, err := b.Directory.Resolve(ctx, symbol)
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	bal, err := b.Wallet.Balance(ctx, token.Mint)
	if err != nil {
		return ToolOutput{}, err
	}
	return ToolOutput{Data: map[string]any{
		"address": b.Wallet.Address(),
		"symbol":  token.Symbol,
		"balance": bal,
	}}, nil
}

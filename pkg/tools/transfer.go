package tools

import (
	"context"
	"errors"
	"fmt"
)

// TransferSolTool sends native SOL from the connected wallet.
type TransferSolTool struct {
	Wallet Wallet
}

func (t *TransferSolTool) Name() string { return TransferSolName }

func (t *TransferSolTool) Description() string {
	return "Transfer SOL from the connected wallet to a recipient address. Requires user confirmation."
}

func (t *TransferSolTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":     map[string]any{"type": "string", "description": "Recipient address"},
			"amount": map[string]any{"type": "number", "exclusiveMinimum": 0, "description": "Amount of SOL"},
		},
		"required": []string{"to", "amount"},
	}
}

func (t *TransferSolTool) RequiresConfirmation() bool { return true }

func (t *TransferSolTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	to := stringArg(input, "to")
	amount, err := floatArg(input, "amount")
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	sig, err := t.Wallet.TransferSOL(ctx, to, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInvalidAddress) {
			return ToolOutput{IsError: true, Message: err.Error()}, nil
		}
		return ToolOutput{}, fmt.Errorf("transfer sol: %w", err)
	}
	return ToolOutput{Data: map[string]any{
		"signature": sig,
		"to":        to,
		"amount":    amount,
		"symbol":    "SOL",
	}}, nil
}

// TransferTokenTool sends an SPL token from the connected wallet.
type TransferTokenTool struct {
	Directory TokenDirectory
	Wallet    Wallet
}

func (t *TransferTokenTool) Name() string { return TransferTokenName }

func (t *TransferTokenTool) Description() string {
	return "Transfer an SPL token from the connected wallet to a recipient address. Requires user confirmation."
}

func (t *TransferTokenTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":     map[string]any{"type": "string", "description": "Recipient address"},
			"token":  map[string]any{"type": "string", "description": "Ticker symbol or mint address"},
			"amount": map[string]any{"type": "number", "exclusiveMinimum": 0, "description": "Token amount"},
		},
		"required": []string{"to", "token", "amount"},
	}
}

func (t *TransferTokenTool) RequiresConfirmation() bool { return true }

func (t *TransferTokenTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	token, err := t.Directory.Resolve(ctx, stringArg(input, "token"))
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	to := stringArg(input, "to")
	amount, err := floatArg(input, "amount")
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	sig, err := t.Wallet.TransferToken(ctx, token.Mint, to, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInvalidAddress) {
			return ToolOutput{IsError: true, Message: err.Error()}, nil
		}
		return ToolOutput{}, fmt.Errorf("transfer %s: %w", token.Symbol, err)
	}
	return ToolOutput{Data: map[string]any{
		"signature": sig,
		"to":        to,
		"amount":    amount,
		"symbol":    token.Symbol,
		"mint":      token.Mint,
	}}, nil
}

package tools

import (
	"context"
	"errors"
	"fmt"
)

// SwapTokensTool swaps one token for another at the current quote.
type SwapTokensTool struct {
	Directory TokenDirectory
	Quotes    QuoteSource
	Wallet    Wallet
}

func (s *SwapTokensTool) Name() string { return SwapTokensName }

func (s *SwapTokensTool) Description() string {
	return "Swap an amount of one token for another using the best available quote. Requires user confirmation."
}

func (s *SwapTokensTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"inputToken":  map[string]any{"type": "string", "description": "Token to sell (symbol or mint)"},
			"outputToken": map[string]any{"type": "string", "description": "Token to buy (symbol or mint)"},
			"amount":      map[string]any{"type": "number", "exclusiveMinimum": 0, "description": "Amount of inputToken to sell"},
		},
		"required": []string{"inputToken", "outputToken", "amount"},
	}
}

func (s *SwapTokensTool) RequiresConfirmation() bool { return true }

func (s *SwapTokensTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	in, err := s.Directory.Resolve(ctx, stringArg(input, "inputToken"))
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	out, err := s.Directory.Resolve(ctx, stringArg(input, "outputToken"))
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	if in.Mint == out.Mint {
		return ToolOutput{IsError: true, Message: "input and output tokens are the same"}, nil
	}
	amount, err := floatArg(input, "amount")
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}

	quote, err := s.Quotes.Quote(ctx, in.Mint, out.Mint, amount)
	if err != nil {
		return ToolOutput{}, fmt.Errorf("quote %s->%s: %w", in.Symbol, out.Symbol, err)
	}
	sig, err := s.Wallet.Swap(ctx, quote)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return ToolOutput{IsError: true, Message: err.Error()}, nil
		}
		return ToolOutput{}, fmt.Errorf("swap: %w", err)
	}
	return ToolOutput{Data: map[string]any{
		"signature": sig,
		"sold":      map[string]any{"symbol": in.Symbol, "amount": quote.InAmount},
		"bought":    map[string]any{"symbol": out.Symbol, "amount": quote.OutAmount},
	}}, nil
}

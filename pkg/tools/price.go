package tools

import "context"

// GetTokenPriceTool quotes a token's USD price.
type GetTokenPriceTool struct {
	Directory TokenDirectory
	Quotes    QuoteSource
}

func (p *GetTokenPriceTool) Name() string { return GetTokenPriceName }

func (p *GetTokenPriceTool) Description() string {
	return "Get the current USD price of a token by symbol or mint address."
}

func (p *GetTokenPriceTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"token": map[string]any{
				"type":        "string",
				"description": "Ticker symbol or mint address",
			},
		},
		"required": []string{"token"},
	}
}

func (p *GetTokenPriceTool) RequiresConfirmation() bool { return false }

func (p *GetTokenPriceTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	token, err := p.Directory.Resolve(ctx, stringArg(input, "token"))
	if err != nil {
		return ToolOutput{IsError: true, Message: err.Error()}, nil
	}
	price, err := p.Quotes.Price(ctx, token.Mint)
	if err != nil {
		return ToolOutput{}, err
	}
	return ToolOutput{Data: map[string]any{
		"symbol":   token.Symbol,
		"mint":     token.Mint,
		"priceUsd": price,
	}}, nil
}

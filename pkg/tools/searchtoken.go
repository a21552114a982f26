package tools

import (
	"context"
	"fmt"
)

// SearchTokenTool looks tokens up by symbol, name or mint.
type SearchTokenTool struct {
	Directory TokenDirectory
}

func (s *SearchTokenTool) Name() string { return SearchTokenName }

func (s *SearchTokenTool) Description() string {
	return `Search for a token by ticker symbol, name or mint address.
Use this before any price, balance, transfer or swap operation to resolve the exact mint.`
}

func (s *SearchTokenTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Ticker symbol, token name or mint address",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTokenTool) RequiresConfirmation() bool { return false }

func (s *SearchTokenTool) Execute(ctx context.Context, input map[string]any) (ToolOutput, error) {
	query := stringArg(input, "query")
	if query == "" {
		return ToolOutput{IsError: true, Message: "query is required"}, nil
	}
	if s.Directory == nil {
		return ToolOutput{IsError: true, Message: "token directory not configured"}, nil
	}
	found, err := s.Directory.Search(ctx, query)
	if err != nil {
		return ToolOutput{}, err
	}
	if len(found) == 0 {
		return ToolOutput{IsError: true, Message: fmt.Sprintf("no token matches %q", query)}, nil
	}
	return ToolOutput{Data: map[string]any{"tokens": found}}, nil
}

package tools

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// NativeMint is the mint address used for native SOL.
const NativeMint = "So11111111111111111111111111111111111111112"

var (
	// ErrTokenNotFound is returned when a token query has no match.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInsufficientFunds is returned when a wallet cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAddress is returned for malformed recipient addresses.
	ErrInvalidAddress = errors.New("invalid address")
)

var base58Address = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ValidAddress reports whether s looks like a base58 Solana address.
func ValidAddress(s string) bool {
	return base58Address.MatchString(s)
}

// TokenInfo describes a token known to the TokenDirectory.
type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
}

// TokenDirectory resolves token symbols, names and mints.
type TokenDirectory interface {
	Search(ctx context.Context, query string) ([]TokenInfo, error)
	Resolve(ctx context.Context, symbolOrMint string) (TokenInfo, error)
}

// SwapQuote is a priced route between two tokens.
type SwapQuote struct {
	InputMint      string  `json:"inputMint"`
	OutputMint     string  `json:"outputMint"`
	InAmount       float64 `json:"inAmount"`
	OutAmount      float64 `json:"outAmount"`
	PriceImpactPct float64 `json:"priceImpactPct"`
}

// QuoteSource provides token prices and swap quotes.
type QuoteSource interface {
	Price(ctx context.Context, mint string) (float64, error)
	Quote(ctx context.Context, inputMint, outputMint string, amount float64) (SwapQuote, error)
}

// Wallet moves funds on behalf of the user. Every method that debits the
// wallet is reached only through tools that require confirmation.
type Wallet interface {
	Address() string
	Balance(ctx context.Context, mint string) (float64, error)
	TransferSOL(ctx context.Context, to string, amount float64) (string, error)
	TransferToken(ctx context.Context, mint, to string, amount float64) (string, error)
	Swap(ctx context.Context, quote SwapQuote) (string, error)
}

// ScheduledAction is a recurring instruction created through createActionTool.
type ScheduledAction struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId,omitempty"`
	Description    string    `json:"description"`
	FrequencySecs  int       `json:"frequency"`
	MaxExecutions  int       `json:"maxExecutions,omitempty"`
	NextRunAt      time.Time `json:"nextRunAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ActionScheduler persists scheduled actions.
type ActionScheduler interface {
	Schedule(ctx context.Context, action ScheduledAction) (ScheduledAction, error)
}

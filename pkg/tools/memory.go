package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTokens is the built-in token list used by StaticTokenDirectory.
var DefaultTokens = []TokenInfo{
	{Symbol: "SOL", Name: "Solana", Mint: NativeMint, Decimals: 9},
	{Symbol: "USDC", Name: "USD Coin", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	{Symbol: "BONK", Name: "Bonk", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5},
	{Symbol: "JUP", Name: "Jupiter", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
}

// StaticTokenDirectory searches a fixed token list.
type StaticTokenDirectory struct {
	Tokens []TokenInfo
}

// NewStaticTokenDirectory creates a directory over DefaultTokens.
func NewStaticTokenDirectory() *StaticTokenDirectory {
	return &StaticTokenDirectory{Tokens: DefaultTokens}
}

func (d *StaticTokenDirectory) Search(_ context.Context, query string) ([]TokenInfo, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []TokenInfo
	for _, t := range d.Tokens {
		if q == strings.ToLower(t.Symbol) || q == strings.ToLower(t.Mint) ||
			strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *StaticTokenDirectory) Resolve(_ context.Context, symbolOrMint string) (TokenInfo, error) {
	q := strings.TrimSpace(symbolOrMint)
	for _, t := range d.Tokens {
		if strings.EqualFold(t.Symbol, q) || t.Mint == q {
			return t, nil
		}
	}
	return TokenInfo{}, fmt.Errorf("%w: %s", ErrTokenNotFound, symbolOrMint)
}

// DefaultPrices are the USD prices of DefaultTokens used by the CLI.
var DefaultPrices = map[string]float64{
	NativeMint: 150,
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 1,
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": 0.00002,
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  0.8,
}

// StaticQuotes prices tokens from a fixed USD table.
type StaticQuotes struct {
	Prices map[string]float64 // mint -> USD
}

func (q *StaticQuotes) Price(_ context.Context, mint string) (float64, error) {
	p, ok := q.Prices[mint]
	if !ok {
		return 0, fmt.Errorf("%w: no price for %s", ErrTokenNotFound, mint)
	}
	return p, nil
}

func (q *StaticQuotes) Quote(ctx context.Context, inputMint, outputMint string, amount float64) (SwapQuote, error) {
	in, err := q.Price(ctx, inputMint)
	if err != nil {
		return SwapQuote{}, err
	}
	out, err := q.Price(ctx, outputMint)
	if err != nil {
		return SwapQuote{}, err
	}
	return SwapQuote{
		InputMint:  inputMint,
		OutputMint: outputMint,
		InAmount:   amount,
		OutAmount:  amount * in / out,
	}, nil
}

// MemoryWallet is an in-process ledger keyed by mint.
type MemoryWallet struct {
	mu       sync.Mutex
	address  string
	balances map[string]float64
	sent     []Transfer
}

// Transfer records a debit made by MemoryWallet.
type Transfer struct {
	Signature string
	Mint      string
	To        string
	Amount    float64
}

// NewMemoryWallet creates a wallet with the given starting balances.
func NewMemoryWallet(address string, balances map[string]float64) *MemoryWallet {
	b := make(map[string]float64, len(balances))
	for k, v := range balances {
		b[k] = v
	}
	return &MemoryWallet{address: address, balances: b}
}

func (w *MemoryWallet) Address() string { return w.address }

func (w *MemoryWallet) Balance(_ context.Context, mint string) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if mint == "" {
		mint = NativeMint
	}
	return w.balances[mint], nil
}

func (w *MemoryWallet) TransferSOL(ctx context.Context, to string, amount float64) (string, error) {
	return w.TransferToken(ctx, NativeMint, to, amount)
}

func (w *MemoryWallet) TransferToken(_ context.Context, mint, to string, amount float64) (string, error) {
	if !ValidAddress(to) {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[mint] < amount {
		return "", ErrInsufficientFunds
	}
	w.balances[mint] -= amount
	sig := uuid.New().String()
	w.sent = append(w.sent, Transfer{Signature: sig, Mint: mint, To: to, Amount: amount})
	return sig, nil
}

func (w *MemoryWallet) Swap(_ context.Context, quote SwapQuote) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[quote.InputMint] < quote.InAmount {
		return "", ErrInsufficientFunds
	}
	w.balances[quote.InputMint] -= quote.InAmount
	w.balances[quote.OutputMint] += quote.OutAmount
	return uuid.New().String(), nil
}

// Transfers returns a copy of every debit made so far.
func (w *MemoryWallet) Transfers() []Transfer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Transfer(nil), w.sent...)
}

// MemoryScheduler keeps scheduled actions in memory.
type MemoryScheduler struct {
	mu      sync.Mutex
	actions []ScheduledAction
}

func (s *MemoryScheduler) Schedule(_ context.Context, action ScheduledAction) (ScheduledAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	s.actions = append(s.actions, action)
	return action, nil
}

// Actions returns the scheduled actions.
func (s *MemoryScheduler) Actions() []ScheduledAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScheduledAction(nil), s.actions...)
}

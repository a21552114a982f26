package llm

import "sync"

// UsageTracker accumulates token usage across requests, per model.
// Safe for concurrent use.
type UsageTracker struct {
	mu       sync.Mutex
	total    TokenUsage
	requests int
	byModel  map[string]TokenUsage
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{byModel: make(map[string]TokenUsage)}
}

// Add records usage from a single response and returns the running total.
func (t *UsageTracker) Add(model string, u TokenUsage) TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byModel == nil {
		t.byModel = make(map[string]TokenUsage)
	}
	t.requests++
	t.total.InputTokens += u.InputTokens
	t.total.OutputTokens += u.OutputTokens

	m := t.byModel[model]
	m.InputTokens += u.InputTokens
	m.OutputTokens += u.OutputTokens
	t.byModel[model] = m
	return t.total
}

// Total returns the cumulative usage and request count.
func (t *UsageTracker) Total() (TokenUsage, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, t.requests
}

// ByModel returns a copy of the per-model breakdown.
func (t *UsageTracker) ByModel() map[string]TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]TokenUsage, len(t.byModel))
	for k, v := range t.byModel {
		out[k] = v
	}
	return out
}

package window

import (
	"fmt"

	"github.com/jg-phare/gatekeep/pkg/llm"
)

// Estimator estimates token counts for text and messages.
type Estimator interface {
	Estimate(text string) int
	EstimateMessages(messages []llm.ChatMessage) int
}

// SimpleEstimator uses the ~4 characters per token heuristic.
type SimpleEstimator struct{}

// Estimate returns an approximate token count for a string.
func (SimpleEstimator) Estimate(text string) int {
	return len(text) / 4
}

// EstimateMessages returns an approximate total for a message slice,
// including tool call names and arguments.
func (e SimpleEstimator) EstimateMessages(messages []llm.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += e.Estimate(ContentString(msg))
		for _, tc := range msg.ToolCalls {
			total += e.Estimate(tc.Function.Name) + e.Estimate(tc.Function.Arguments) + 4
		}
		total += 4 // role, separators
	}
	return total
}

// ContentString extracts the text content from a ChatMessage.
func ContentString(msg llm.ChatMessage) string {
	switch c := msg.Content.(type) {
	case string:
		return c
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", c)
	}
}

// Package window keeps the model's view of a conversation inside its
// context window.
package window

import "github.com/jg-phare/gatekeep/pkg/llm"

// preserveRecent messages are never pruned.
const preserveRecent = 6

// Fit trims messages to at most budget estimated tokens. Old tool results
// are truncated first. If that is not enough, whole leading turns are
// dropped, so a turn always starts at a user message and tool calls keep
// their results. The last turn is kept even when it alone exceeds budget.
//
// A non-positive budget disables trimming. A nil estimator uses
// SimpleEstimator.
func Fit(messages []llm.ChatMessage, budget int, est Estimator) []llm.ChatMessage {
	if est == nil {
		est = SimpleEstimator{}
	}
	if budget <= 0 || est.EstimateMessages(messages) <= budget {
		return messages
	}

	pruned := PruneOldToolResults(messages, preserveRecent)
	if est.EstimateMessages(pruned) <= budget {
		return pruned
	}
	return pruned[splitPoint(pruned, budget, est):]
}

// splitPoint returns the index of the first kept message: the earliest user
// message whose suffix fits, or the last user message if none does.
func splitPoint(messages []llm.ChatMessage, budget int, est Estimator) int {
	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = i
			break
		}
	}
	if last <= 0 {
		return 0
	}

	tokens := 0
	fit := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		tokens += est.EstimateMessages(messages[i : i+1])
		if tokens > budget {
			break
		}
		fit = i
	}

	for i := fit; i < last; i++ {
		if messages[i].Role == "user" {
			return i
		}
	}
	return last
}

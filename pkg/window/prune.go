package window

import (
	"unicode/utf8"

	"github.com/jg-phare/gatekeep/pkg/llm"
)

const (
	pruneThreshold = 1000
	prunedLength   = 200
)

// PruneOldToolResults truncates tool results longer than 1000 characters,
// except in the last preserveRecent messages.
func PruneOldToolResults(messages []llm.ChatMessage, preserveRecent int) []llm.ChatMessage {
	if preserveRecent < 0 {
		preserveRecent = 0
	}

	result := make([]llm.ChatMessage, len(messages))
	copy(result, messages)

	pruneEnd := len(result) - preserveRecent
	for i := 0; i < pruneEnd; i++ {
		if result[i].Role != "tool" {
			continue
		}
		content := ContentString(result[i])
		if len(content) > pruneThreshold {
			result[i] = llm.ChatMessage{
				Role:       "tool",
				ToolCallID: result[i].ToolCallID,
				Content:    truncate(content, prunedLength),
			}
		}
	}

	return result
}

func truncate(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "\n... [output truncated]"
}

package window

import "strings"

// ModelContextLimits maps model IDs to their context window sizes.
var ModelContextLimits = map[string]int{
	"gpt-4o":       128_000,
	"gpt-4o-mini":  128_000,
	"gpt-4.1":      1_047_576,
	"gpt-4.1-mini": 1_047_576,
	"gpt-4.1-nano": 1_047_576,
	"o3-mini":      200_000,
	"o4-mini":      200_000,
}

// DefaultContextLimit is used when the model is not recognized.
const DefaultContextLimit = 128_000

// ContextLimit returns the context window of model. A provider prefix such
// as "openai/" is ignored.
func ContextLimit(model string) int {
	if limit, ok := ModelContextLimits[model]; ok {
		return limit
	}
	if i := strings.LastIndex(model, "/"); i >= 0 {
		if limit, ok := ModelContextLimits[model[i+1:]]; ok {
			return limit
		}
	}
	return DefaultContextLimit
}

// Budget is the share of a context window left for history once the system
// prompt, tool definitions and the response are accounted for.
func Budget(limit int) int {
	return limit * 3 / 4
}

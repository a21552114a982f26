package prompt

import (
	"strings"
)

// AgentOptions selects the sections of the agent system prompt.
type AgentOptions struct {
	Vars         Vars
	Degen        bool     // confirmation gate bypassed
	ToolsOffered []string // names offered this turn; nil when no tools are offered
}

// AgentPrompt assembles the chat agent's system prompt.
func AgentPrompt(opts AgentOptions) string {
	vars := opts.Vars.table()
	parts := []string{simpleReplace(loadSystemPrompt("agent-main.md"), vars)}

	if len(opts.Vars.SensitiveTools) > 0 {
		if opts.Degen {
			parts = append(parts, simpleReplace(loadSystemPrompt("agent-degen.md"), vars))
		} else {
			parts = append(parts, simpleReplace(loadSystemPrompt("agent-confirmation.md"), vars))
		}
	}

	if opts.Vars.ScheduleTool != "" && contains(opts.ToolsOffered, opts.Vars.ScheduleTool) {
		parts = append(parts, simpleReplace(loadSystemPrompt("agent-scheduling.md"), vars))
	}

	return joinParts(parts)
}

// OrchestratorPrompt assembles the tool-selection system prompt.
func OrchestratorPrompt(vars Vars) string {
	return strings.TrimSpace(simpleReplace(loadSystemPrompt("orchestrator.md"), vars.table()))
}

func joinParts(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

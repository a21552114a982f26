package prompt

import (
	"strings"
	"time"
)

// Vars holds the values substituted into prompt templates.
type Vars struct {
	WalletAddress    string
	Now              time.Time
	SearchTool       string
	ConfirmationTool string
	ScheduleTool     string
	SensitiveTools   []string
	Tools            []ToolSummary // for the orchestrator tool list
}

// ToolSummary is one line of the orchestrator's tool list.
type ToolSummary struct {
	Name                 string
	Description          string
	RequiresConfirmation bool
}

func (v *Vars) table() map[string]string {
	now := v.Now
	if now.IsZero() {
		now = time.Now()
	}
	wallet := v.WalletAddress
	if wallet == "" {
		wallet = "(not connected)"
	}
	return map[string]string{
		"WALLET_ADDRESS":    wallet,
		"NOW":               now.UTC().Format(time.RFC3339),
		"SEARCH_TOOL":       v.SearchTool,
		"CONFIRMATION_TOOL": v.ConfirmationTool,
		"SCHEDULE_TOOL":     v.ScheduleTool,
		"SENSITIVE_TOOLS":   strings.Join(v.SensitiveTools, ", "),
		"TOOL_LIST":         toolList(v.Tools),
	}
}

func toolList(tools []ToolSummary) string {
	var b strings.Builder
	for _, t := range tools {
		b.WriteString("- ")
		b.WriteString(t.Name)
		if t.RequiresConfirmation {
			b.WriteString(" (moves funds)")
		}
		if desc := firstLine(t.Description); desc != "" {
			b.WriteString(": ")
			b.WriteString(desc)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// simpleReplace substitutes ${KEY} placeholders.
func simpleReplace(tmpl string, vars map[string]string) string {
	result := tmpl
	for k, v := range vars {
		result = strings.ReplaceAll(result, "${"+k+"}", v)
	}
	return result
}

package permission

import (
	"fmt"
	"strings"
)

// Mode is the session-wide permission policy.
type Mode string

const (
	// ModeDefault requires confirmation for every sensitive tool.
	ModeDefault Mode = "default"
	// ModeDegen bypasses the confirmation gate. Explicit deny rules still apply.
	ModeDegen Mode = "degen"
	// ModeReadOnly denies every sensitive tool.
	ModeReadOnly Mode = "readonly"
)

// ParseMode validates a mode string. The empty string maps to ModeDefault.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeDefault, nil
	case ModeDefault, ModeDegen, ModeReadOnly:
		return m, nil
	default:
		return "", fmt.Errorf("permission: unknown mode %q", s)
	}
}

// Behavior is the outcome of a permission check.
type Behavior string

const (
	BehaviorAllow Behavior = "allow"
	BehaviorDeny  Behavior = "deny"
	BehaviorAsk   Behavior = "ask" // route through the confirmation gate
)

// Decision is the result of Checker.Check.
type Decision struct {
	Behavior Behavior
	Message  string
	Rule     *Rule // matching rule, if any
}

// Rule matches tool invocations by tool name and argument content.
type Rule struct {
	Tool     string   `yaml:"tool"`            // tool name or glob, e.g. "transfer*"
	Match    string   `yaml:"match,omitempty"` // glob or substring over address/token fields
	Behavior Behavior `yaml:"behavior"`
	Source   string   `yaml:"-"` // "config", "session"
}

// Matches reports whether the rule applies to an invocation.
// An empty Match applies to every invocation of the tool.
func (r *Rule) Matches(toolName string, input map[string]any) bool {
	if !matchToolName(r.Tool, toolName) {
		return false
	}
	if r.Match == "" {
		return true
	}
	return matchRuleContent(r.Match, input)
}

func (r *Rule) validate() error {
	if r.Tool == "" {
		return fmt.Errorf("permission: rule without tool")
	}
	switch r.Behavior {
	case BehaviorAllow, BehaviorDeny, BehaviorAsk:
		return nil
	default:
		return fmt.Errorf("permission: rule for %q has invalid behavior %q", r.Tool, r.Behavior)
	}
}

// SensitivityLookup reports whether a tool requires confirmation.
// *tools.Registry satisfies it.
type SensitivityLookup interface {
	RequiresConfirmation(name string) (bool, error)
}

// CheckerConfig holds all configuration for constructing a Checker.
type CheckerConfig struct {
	Mode          Mode
	DisabledTools []string
	Rules         []Rule
	Tools         SensitivityLookup
}

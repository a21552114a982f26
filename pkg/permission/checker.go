package permission

import (
	"context"
	"fmt"
	"sync"
)

type ruleSet struct {
	mu      sync.RWMutex
	config  []Rule
	session []Rule
}

// Checker decides whether a tool invocation may run now, must be confirmed
// first, or is refused. Views created by WithMode share disabled tools and
// rules with their parent.
type Checker struct {
	mode     Mode
	disabled map[string]bool
	rules    *ruleSet
	tools    SensitivityLookup
}

// NewChecker creates a permission Checker from configuration.
func NewChecker(config CheckerConfig) (*Checker, error) {
	if config.Tools == nil {
		return nil, fmt.Errorf("permission: tool lookup is required")
	}
	mode := config.Mode
	if mode == "" {
		mode = ModeDefault
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	disabled := make(map[string]bool, len(config.DisabledTools))
	for _, name := range config.DisabledTools {
		disabled[name] = true
	}

	configRules, err := configRuleList(config.Rules)
	if err != nil {
		return nil, err
	}
	rules := &ruleSet{config: configRules}

	return &Checker{
		mode:     mode,
		disabled: disabled,
		rules:    rules,
		tools:    config.Tools,
	}, nil
}

// WithMode returns a view of c evaluating under mode.
func (c *Checker) WithMode(mode Mode) *Checker {
	view := *c
	view.mode = mode
	return &view
}

// Mode returns the mode this checker evaluates under.
func (c *Checker) Mode() Mode { return c.mode }

// Check evaluates a tool invocation.
// Layers: mode → disabled → rules → tool default. Outside degen mode a
// sensitive tool is never allowed outright; the best it gets is ask.
func (c *Checker) Check(_ context.Context, toolName string, input map[string]any) (Decision, error) {
	sensitive, err := c.tools.RequiresConfirmation(toolName)
	if err != nil {
		return Decision{}, err
	}

	if c.mode == ModeReadOnly && sensitive {
		return Decision{Behavior: BehaviorDeny, Message: "sensitive tools are disabled in readonly mode"}, nil
	}

	if c.disabled[toolName] {
		return Decision{Behavior: BehaviorDeny, Message: "tool is disabled"}, nil
	}

	if rule, ok := c.matchRule(toolName, input); ok {
		switch rule.Behavior {
		case BehaviorDeny:
			return Decision{Behavior: BehaviorDeny, Message: "denied by permission rule", Rule: rule}, nil
		case BehaviorAsk:
			if c.mode == ModeDegen {
				return Decision{Behavior: BehaviorAllow, Rule: rule}, nil
			}
			return Decision{Behavior: BehaviorAsk, Rule: rule}, nil
		case BehaviorAllow:
			return c.toolDefault(sensitive, rule), nil
		}
	}

	return c.toolDefault(sensitive, nil), nil
}

func (c *Checker) toolDefault(sensitive bool, rule *Rule) Decision {
	if sensitive && c.mode != ModeDegen {
		return Decision{Behavior: BehaviorAsk, Rule: rule}
	}
	return Decision{Behavior: BehaviorAllow, Rule: rule}
}

// matchRule returns the first matching config rule, then session rule.
func (c *Checker) matchRule(toolName string, input map[string]any) (*Rule, bool) {
	c.rules.mu.RLock()
	defer c.rules.mu.RUnlock()
	for _, set := range [][]Rule{c.rules.config, c.rules.session} {
		for i := range set {
			if set[i].Matches(toolName, input) {
				r := set[i]
				return &r, true
			}
		}
	}
	return nil, false
}

package permission

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// addressFields are the argument fields rule content is matched against.
// Invocations without any of them fall back to every string field.
var addressFields = []string{"to", "mint", "token", "inputToken", "outputToken"}

func matchToolName(pattern, name string) bool {
	if isGlobPattern(pattern) {
		ok, err := doublestar.Match(pattern, name)
		return err == nil && ok
	}
	return pattern == name
}

func matchRuleContent(ruleContent string, input map[string]any) bool {
	if input == nil {
		return false
	}
	var sawField bool
	for _, field := range addressFields {
		s, ok := input[field].(string)
		if !ok {
			continue
		}
		sawField = true
		if matchPattern(ruleContent, s) {
			return true
		}
	}
	if sawField {
		return false
	}
	for _, val := range input {
		if s, ok := val.(string); ok && matchPattern(ruleContent, s) {
			return true
		}
	}
	return false
}

// matchPattern tries glob matching first, then case-insensitive substring.
func matchPattern(pattern, value string) bool {
	if isGlobPattern(pattern) {
		matched, err := doublestar.Match(pattern, value)
		if err == nil && matched {
			return true
		}
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func isGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func configRuleList(in []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(in))
	for _, r := range in {
		if err := r.validate(); err != nil {
			return nil, err
		}
		r.Source = "config"
		out = append(out, r)
	}
	return out, nil
}

// SetRules replaces the configured rules. Session rules are kept. Views of
// the checker see the new rules immediately.
func (c *Checker) SetRules(rules []Rule) error {
	next, err := configRuleList(rules)
	if err != nil {
		return err
	}
	c.rules.mu.Lock()
	defer c.rules.mu.Unlock()
	c.rules.config = next
	return nil
}

// AddSessionRule appends a rule evaluated after the configured rules.
func (c *Checker) AddSessionRule(rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	rule.Source = "session"
	c.rules.mu.Lock()
	defer c.rules.mu.Unlock()
	c.rules.session = append(c.rules.session, rule)
	return nil
}

// RemoveSessionRules drops every session rule for the given tool pattern.
func (c *Checker) RemoveSessionRules(tool string) int {
	c.rules.mu.Lock()
	defer c.rules.mu.Unlock()
	kept := c.rules.session[:0]
	removed := 0
	for _, r := range c.rules.session {
		if r.Tool == tool {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	c.rules.session = kept
	return removed
}

// SessionRules returns a copy of the current session rules.
func (c *Checker) SessionRules() []Rule {
	c.rules.mu.RLock()
	defer c.rules.mu.RUnlock()
	return append([]Rule(nil), c.rules.session...)
}

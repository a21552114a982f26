package prompt

import "strings"

// ReminderID identifies a reminder or canned assistant text.
type ReminderID string

const (
	ReminderAwaitingConfirmation ReminderID = "awaiting_confirmation"
	ReminderReprompt             ReminderID = "reprompt"
	ReminderAlreadyRejected      ReminderID = "already_rejected"
	ReminderConfirmationRequired ReminderID = "confirmation_required"
	ReminderTurnFailed           ReminderID = "turn_failed"
)

var reminderFileMap = map[ReminderID]string{
	ReminderAwaitingConfirmation: "awaiting-confirmation.md",
	ReminderReprompt:             "reprompt.md",
	ReminderAlreadyRejected:      "already-rejected.md",
	ReminderConfirmationRequired: "confirmation-required.md",
	ReminderTurnFailed:           "turn-failed.md",
}

// GetReminder loads a reminder by ID and substitutes vars (TOOL, MESSAGE, ...).
// Returns "" if the ID is unknown.
func GetReminder(id ReminderID, vars map[string]string) string {
	filename, ok := reminderFileMap[id]
	if !ok {
		return ""
	}
	content := loadReminderPrompt(filename)
	if len(vars) > 0 {
		content = simpleReplace(content, vars)
	}
	return strings.TrimSpace(content)
}

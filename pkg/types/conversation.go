package types

import "time"

// Conversation is the persisted header of a chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Preferences are per-user settings that outlive a single conversation.
// DegenMode suppresses the confirmation round-trip for sensitive tools.
type Preferences struct {
	UserID    string    `json:"userId"`
	DegenMode bool      `json:"degenMode"`
	Model     string    `json:"model,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

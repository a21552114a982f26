package chat

import "errors"

var (
	// ErrNoUserMessage is returned by RunTurn when history does not end with
	// a user message.
	ErrNoUserMessage = errors.New("chat: history does not end with a user message")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("chat: empty message")
)

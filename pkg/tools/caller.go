package tools

import "context"

// Caller identifies who a tool is executing for.
type Caller struct {
	UserID         string
	ConversationID string
	ToolCallID     string
}

type callerKey struct{}

// WithCaller attaches the caller to ctx for tool handlers.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller attached by WithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

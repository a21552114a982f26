package llm

import "strconv"

// ToolCallAccumulator collects incremental tool call deltas into complete ToolCalls.
type ToolCallAccumulator struct {
	calls    map[int]*ToolCall
	maxIndex int
}

// NewToolCallAccumulator creates a new accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: make(map[int]*ToolCall)}
}

// AddDelta merges an incremental tool call delta. ID and name arrive on the
// first delta for an index; arguments are appended.
func (a *ToolCallAccumulator) AddDelta(delta ToolCall) {
	idx := delta.Index
	if idx > a.maxIndex {
		a.maxIndex = idx
	}
	existing, ok := a.calls[idx]
	if !ok {
		existing = &ToolCall{Index: idx, Type: "function"}
		a.calls[idx] = existing
	}
	if delta.ID != "" {
		existing.ID = delta.ID
	}
	if delta.Type != "" {
		existing.Type = delta.Type
	}
	if delta.Function.Name != "" {
		existing.Function.Name = delta.Function.Name
	}
	existing.Function.Arguments += delta.Function.Arguments
}

// Complete returns all accumulated tool calls in index order. Calls the
// provider sent without an id get a positional one.
func (a *ToolCallAccumulator) Complete() []ToolCall {
	result := make([]ToolCall, 0, len(a.calls))
	for i := 0; i <= a.maxIndex; i++ {
		call, ok := a.calls[i]
		if !ok {
			continue
		}
		c := *call
		if c.ID == "" {
			c.ID = "call_" + strconv.Itoa(i)
		}
		result = append(result, c)
	}
	return result
}

package llm

import (
	"context"
	"io"
	"strings"
)

// Stream is an in-flight completion. Read it with Next, or drain it with
// Accumulate; either way Close releases the connection.
type Stream struct {
	events <-chan StreamEvent
	body   io.ReadCloser
	cancel context.CancelFunc
	usage  *UsageTracker
	ctx    context.Context // parent request context; nil when unknown
}

// NewStream wraps an event channel. body and cancel may be nil for streams
// that are not backed by HTTP.
func NewStream(events <-chan StreamEvent, body io.ReadCloser, cancel context.CancelFunc) *Stream {
	return &Stream{events: events, body: body, cancel: cancel}
}

// Next returns the next chunk, or io.EOF at the end of the stream.
func (s *Stream) Next() (*StreamChunk, error) {
	ev, ok := <-s.events
	switch {
	case !ok, ev.Done:
		return nil, io.EOF
	case ev.Err != nil:
		return nil, ev.Err
	}
	return ev.Chunk, nil
}

// Accumulate drains the stream into a single response.
func (s *Stream) Accumulate() (*CompletionResponse, error) {
	return s.AccumulateWithCallback(nil)
}

// AccumulateWithCallback is Accumulate with a hook that sees every chunk
// before it is merged.
func (s *Stream) AccumulateWithCallback(cb func(*StreamChunk)) (*CompletionResponse, error) {
	defer s.Close()

	var col collector
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if cb != nil {
			cb(chunk)
		}
		col.add(chunk)
	}
	// A cancelled request can end the event channel without an error event.
	if s.ctx != nil && s.ctx.Err() != nil {
		return nil, s.ctx.Err()
	}

	resp := col.response()
	if s.usage != nil {
		s.usage.Add(resp.Model, resp.Usage)
	}
	return resp, nil
}

// Close cancels the request and closes the body. Safe to call twice.
func (s *Stream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}

// collector merges streamed deltas.
type collector struct {
	id, model, finish string
	text, refusal     strings.Builder
	calls             *ToolCallAccumulator
	usage             *Usage
}

func (c *collector) add(chunk *StreamChunk) {
	if c.calls == nil {
		c.calls = NewToolCallAccumulator()
	}
	if c.id == "" {
		c.id, c.model = chunk.ID, chunk.Model
	}
	if chunk.Usage != nil {
		c.usage = chunk.Usage
	}
	for _, choice := range chunk.Choices {
		if d := choice.Delta.Content; d != nil {
			c.text.WriteString(*d)
		}
		if d := choice.Delta.Refusal; d != nil {
			c.refusal.WriteString(*d)
		}
		for _, tc := range choice.Delta.ToolCalls {
			c.calls.AddDelta(tc)
		}
		if choice.FinishReason != nil {
			c.finish = *choice.FinishReason
		}
	}
}

func (c *collector) response() *CompletionResponse {
	resp := &CompletionResponse{
		ID:           c.id,
		Model:        c.model,
		Text:         c.text.String(),
		Refusal:      c.refusal.String(),
		FinishReason: c.finish,
		StopReason:   translateFinishReason(c.finish),
		Usage:        translateUsage(c.usage),
	}
	if c.calls != nil {
		for _, tc := range c.calls.Complete() {
			resp.ToolUses = append(resp.ToolUses, parseToolUse(tc))
		}
	}
	return resp
}

package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// maxSSELine bounds a single data line; large tool-call argument chunks
// exceed bufio's 64KiB default.
const maxSSELine = 1 << 20

// StreamEvent wraps a parsed chunk or an error.
type StreamEvent struct {
	Chunk *StreamChunk
	Err   error
	Done  bool // "data: [DONE]" received
}

// ParseSSEStream reads an HTTP response body line-by-line and yields StreamEvents.
// The returned channel is closed when the stream ends (either [DONE] or error).
func ParseSSEStream(ctx context.Context, body io.ReadCloser) <-chan StreamEvent {
	ch := make(chan StreamEvent)

	send := func(ev StreamEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64<<10), maxSSELine)
		for scanner.Scan() {
			if ctx.Err() != nil {
				send(StreamEvent{Err: ctx.Err()})
				return
			}

			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				// comments (":"), event names, blank separators
				continue
			}
			data = strings.TrimSpace(data)

			if data == "[DONE]" {
				send(StreamEvent{Done: true})
				return
			}

			var chunk StreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if !send(StreamEvent{Chunk: &chunk}) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			send(StreamEvent{Err: err})
			return
		}
		if ctx.Err() != nil {
			send(StreamEvent{Err: ctx.Err()})
		}
	}()

	return ch
}

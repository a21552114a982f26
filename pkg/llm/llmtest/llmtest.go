// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jg-phare/gatekeep/pkg/llm"
)

// Call is one scripted tool call.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Reply is one scripted completion: either an error or a stream of chunks.
type Reply struct {
	Chunks []llm.StreamChunk
	Err    error
	Block  bool // wait for ctx to end before returning ctx.Err()
}

// Text scripts a plain text answer.
func Text(text string) Reply {
	stop := "stop"
	return Reply{Chunks: []llm.StreamChunk{
		textChunk(text),
		{ID: "resp", Model: "test-model", Choices: []llm.Choice{{FinishReason: &stop}},
			Usage: &llm.Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60}},
	}}
}

// ToolCalls scripts a response carrying tool calls, optionally preceded by text.
func ToolCalls(text string, calls ...Call) Reply {
	reason := "tool_calls"
	var chunks []llm.StreamChunk
	if text != "" {
		chunks = append(chunks, textChunk(text))
	}
	for i, c := range calls {
		args, _ := json.Marshal(c.Args)
		if c.Args == nil {
			args = []byte("{}")
		}
		chunks = append(chunks, llm.StreamChunk{
			ID:    "resp",
			Model: "test-model",
			Choices: []llm.Choice{{Delta: llm.Delta{ToolCalls: []llm.ToolCall{{
				Index:    i,
				ID:       c.ID,
				Type:     "function",
				Function: llm.FunctionCall{Name: c.Name, Arguments: string(args)},
			}}}}},
		})
	}
	chunks = append(chunks, llm.StreamChunk{ID: "resp", Model: "test-model",
		Choices: []llm.Choice{{FinishReason: &reason}}})
	return Reply{Chunks: chunks}
}

// JSON scripts a structured-output answer.
func JSON(v any) Reply {
	b, _ := json.Marshal(v)
	return Text(string(b))
}

// Fail scripts an error from Complete.
func Fail(err error) Reply { return Reply{Err: err} }

// Hang scripts a call that blocks until its context ends.
func Hang() Reply { return Reply{Block: true} }

func textChunk(text string) llm.StreamChunk {
	content := text
	return llm.StreamChunk{
		ID:      "resp",
		Model:   "test-model",
		Choices: []llm.Choice{{Delta: llm.Delta{Content: &content}}},
	}
}

// ErrExhausted is returned once the script has no replies left.
var ErrExhausted = errors.New("llmtest: no scripted replies left")

// Client replays scripted replies in order and records every request.
type Client struct {
	mu       sync.Mutex
	replies  []Reply
	requests []*llm.CompletionRequest
	model    string
}

// NewClient returns a Client that answers with replies in order.
func NewClient(replies ...Reply) *Client {
	return &Client{replies: replies, model: "test-model"}
}

// Push appends replies to the script.
func (c *Client) Push(replies ...Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
}

func (c *Client) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Stream, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		c.mu.Unlock()
		return nil, ErrExhausted
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	c.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.Err != nil {
		return nil, r.Err
	}

	events := make(chan llm.StreamEvent, len(r.Chunks))
	for i := range r.Chunks {
		chunk := r.Chunks[i]
		events <- llm.StreamEvent{Chunk: &chunk}
	}
	close(events)
	return llm.NewStream(events, nil, nil), nil
}

func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Requests returns the requests seen so far.
func (c *Client) Requests() []*llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*llm.CompletionRequest(nil), c.requests...)
}

// Remaining reports how many scripted replies are left.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replies)
}

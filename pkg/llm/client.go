package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultBaseURL is used when ClientConfig.BaseURL is empty.
const DefaultBaseURL = "https://api.openai.com/v1"

const defaultMaxTokens = 4096

// Client streams chat completions from an OpenAI-compatible endpoint.
// Implementations must be safe for concurrent use; sessions share one.
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Stream, error)

	// Model is the default used when a request leaves Model empty.
	Model() string
	SetModel(model string)
}

type httpClient struct {
	endpoint string
	cfg      ClientConfig
	hc       *http.Client
	log      *zap.Logger

	mu    sync.RWMutex
	model string
}

// NewClient returns a Client for cfg. Zero fields take defaults.
func NewClient(cfg ClientConfig) Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &httpClient{
		endpoint: base + "/chat/completions",
		cfg:      cfg,
		hc:       cfg.HTTPClient,
		log:      cfg.Logger.Named("llm"),
		model:    cfg.Model,
	}
}

func (c *httpClient) Complete(ctx context.Context, req *CompletionRequest) (*Stream, error) {
	body, err := c.encode(req)
	if err != nil {
		return nil, err
	}
	log := c.log.With(zap.String("model", req.Model))
	if req.User != "" {
		log = log.With(zap.String("user", req.User))
	}
	log.Debug("completion request",
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Tools)))

	resp, err := doWithRetry(ctx, c.cfg.Retry, log, func(ctx context.Context) (*http.Response, error) {
		httpReq, err := c.newRequest(ctx, body)
		if err != nil {
			return nil, err
		}
		return c.hc.Do(httpReq)
	})
	if err != nil {
		return nil, err
	}
	if id := resp.Header.Get("X-Request-Id"); id != "" {
		log = log.With(zap.String("request_id", id))
	}

	if resp.StatusCode != http.StatusOK {
		llmErr := classifyError(resp)
		resp.Body.Close()
		log.Warn("completion rejected",
			zap.Int("status", llmErr.StatusCode),
			zap.String("kind", llmErr.Kind))
		return nil, llmErr
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := NewStream(ParseSSEStream(streamCtx, resp.Body), resp.Body, cancel)
	stream.usage = c.cfg.Usage
	stream.ctx = ctx
	return stream, nil
}

// encode forces streaming with usage reporting and fills the default model.
func (c *httpClient) encode(req *CompletionRequest) ([]byte, error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}
	if req.Model == "" {
		req.Model = c.Model()
	}
	if req.Model == "" {
		return nil, fmt.Errorf("llm: no model configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}
	return body, nil
}

func (c *httpClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		r.Header.Set(k, v)
	}
	return r, nil
}

func (c *httpClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *httpClient) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

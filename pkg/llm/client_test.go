package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffFactor:     2,
		RetryableStatuses: []int{429, 500, 502, 503},
	}
}

func sseHandler(t *testing.T, body string, inspect func(*CompletionRequest)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var req CompletionRequest
			require.NoError(t, json.Unmarshal(raw, &req))
			inspect(&req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}
}

func TestClient_EndToEnd(t *testing.T) {
	var seen *CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		sseHandler(t, toolStream, func(req *CompletionRequest) { seen = req })(w, r)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Headers: map[string]string{"X-Extra": "yes"},
	})

	stream, err := client.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "What is SOL?"}},
	})
	require.NoError(t, err)
	resp, err := stream.Accumulate()
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "gpt-4o-mini", seen.Model, "empty model falls back to client default")
	assert.True(t, seen.Stream)
	require.NotNil(t, seen.StreamOptions)
	assert.True(t, seen.StreamOptions.IncludeUsage)

	require.Len(t, resp.ToolUses, 2)
	assert.Equal(t, "searchToken", resp.ToolUses[0].Name)
}

func TestClient_SetModel(t *testing.T) {
	c := NewClient(ClientConfig{Model: "a"})
	c.SetModel("b")
	assert.Equal(t, "b", c.Model())
}

func TestClient_AuthFailureNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "bad key")
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Retry: fastRetry()})
	_, err := client.Complete(context.Background(), &CompletionRequest{Model: "m"})

	var llmErr *LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, KindAuthentication, llmErr.Kind)
	assert.Equal(t, "bad key", llmErr.Message)
	assert.False(t, llmErr.Retryable)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		sseHandler(t, textStream, nil)(w, r)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m", Retry: fastRetry()})
	stream, err := client.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	resp, err := stream.Accumulate()
	require.NoError(t, err)

	assert.Equal(t, "Balance is 10 SOL.", resp.Text)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m", Retry: fastRetry()})
	_, err := client.Complete(context.Background(), &CompletionRequest{})

	var maxErr *ErrMaxRetriesExceeded
	require.True(t, errors.As(err, &maxErr))
	assert.Equal(t, 3, maxErr.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, maxErr.LastStatus)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_DeadlineDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	retry := fastRetry()
	retry.InitialBackoff = time.Second
	retry.MaxBackoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Model: "m", Retry: retry})
	_, err := client.Complete(ctx, &CompletionRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      string
		retryable bool
	}{
		{401, KindAuthentication, false},
		{402, KindBilling, false},
		{403, KindBilling, false},
		{400, KindInvalidRequest, false},
		{422, KindInvalidRequest, false},
		{429, KindRateLimit, true},
		{500, KindServer, true},
		{503, KindServer, true},
		{418, KindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			kind, retryable := classifyStatus(tt.status)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("garbage"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 59*time.Minute)
}

func TestClient_TrailingSlashAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("X-Request-Id", "req-1")
		sseHandler(t, textStream, nil)(w, r)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL + "/v1/", Model: "m", Retry: fastRetry()})
	stream, err := client.Complete(context.Background(), &CompletionRequest{User: "alice"})
	require.NoError(t, err)
	_, err = stream.Accumulate()
	require.NoError(t, err)
}

func TestClient_NoModel(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:0"})
	_, err := client.Complete(context.Background(), &CompletionRequest{})
	assert.ErrorContains(t, err, "no model configured")
}

func TestClassifyError_JSONBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "2")
	rec.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprint(rec, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`)

	e := classifyError(rec.Result())
	assert.Equal(t, KindRateLimit, e.Kind)
	assert.Equal(t, "slow down", e.Message)
	assert.Equal(t, "requests", e.Type)
	assert.Equal(t, "rate_limit_exceeded", e.Code)
	assert.Equal(t, 2*time.Second, e.RetryAfter)
	assert.True(t, e.Retryable)
}

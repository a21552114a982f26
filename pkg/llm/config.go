package llm

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ClientConfig holds LLM client configuration.
type ClientConfig struct {
	BaseURL     string            // OpenAI-compatible endpoint, e.g. "https://api.openai.com/v1"
	APIKey      string            // Bearer token
	Model       string            // Default model, e.g. "gpt-4o-mini"
	MaxTokens   int               // Default max_tokens for responses (4096)
	Temperature *float64          // nil = provider default
	Headers     map[string]string // Additional HTTP headers
	HTTPClient  *http.Client      // Custom HTTP client (for timeouts, TLS, proxies)
	Retry       RetryConfig
	Usage       *UsageTracker // Optional token accounting across requests
	Logger      *zap.Logger   // nil = no-op
}

// RetryConfig controls retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries        int           // Max retry attempts (default: 3)
	InitialBackoff    time.Duration // Initial backoff (default: 1s)
	MaxBackoff        time.Duration // Max backoff cap (default: 30s)
	BackoffFactor     float64       // Multiplier per retry (default: 2.0)
	JitterFraction    float64       // Random jitter as fraction of backoff (default: 0.1)
	RetryableStatuses []int         // HTTP codes to retry (default: 429, 500, 502, 503)
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		JitterFraction:    0.1,
		RetryableStatuses: []int{429, 500, 502, 503},
	}
}

package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error kinds reported in LLMError.Kind.
const (
	KindAuthentication = "authentication_failed"
	KindBilling        = "billing_error"
	KindInvalidRequest = "invalid_request"
	KindRateLimit      = "rate_limit"
	KindServer         = "server_error"
	KindUnknown        = "unknown"
)

// LLMError is a non-200 answer from the completion endpoint.
type LLMError struct {
	StatusCode int
	Kind       string
	Message    string
	Type       string // provider error type, when the body was JSON
	Code       string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
}

// ErrMaxRetriesExceeded is returned when all retry attempts are exhausted.
type ErrMaxRetriesExceeded struct {
	Attempts   int
	LastStatus int
	LastErr    error // last network error, if the final attempt never got a response
}

func (e *ErrMaxRetriesExceeded) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("llm: max retries exceeded (%d attempts): %v", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("llm: max retries exceeded (%d attempts, last HTTP %d)", e.Attempts, e.LastStatus)
}

func (e *ErrMaxRetriesExceeded) Unwrap() error { return e.LastErr }

// apiErrorBody is the OpenAI error envelope. Compatible servers often send
// plain text instead, which is kept as the message.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func classifyError(resp *http.Response) *LLMError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	kind, retryable := classifyStatus(resp.StatusCode)
	e := &LLMError{
		StatusCode: resp.StatusCode,
		Kind:       kind,
		Message:    strings.TrimSpace(string(raw)),
		Retryable:  retryable,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	var body apiErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		e.Message = body.Error.Message
		e.Type = body.Error.Type
		if body.Error.Code != nil {
			e.Code = fmt.Sprint(body.Error.Code)
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

func classifyStatus(statusCode int) (kind string, retryable bool) {
	switch statusCode {
	case http.StatusUnauthorized:
		return KindAuthentication, false
	case http.StatusPaymentRequired, http.StatusForbidden:
		return KindBilling, false
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindInvalidRequest, false
	case http.StatusTooManyRequests:
		return KindRateLimit, true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return KindServer, true
	default:
		return KindUnknown, false
	}
}

func isRetryable(statusCode int, retryableStatuses []int) bool {
	return slices.Contains(retryableStatuses, statusCode)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

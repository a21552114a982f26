package llm

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func backoffFor(config RetryConfig, attempt int) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt-1))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	jitter := backoff * config.JitterFraction * rand.Float64()
	return time.Duration(backoff + jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// doWithRetry executes makeRequest with retry logic for transient failures.
// A non-retryable error status is returned to the caller for classification.
func doWithRetry(ctx context.Context, config RetryConfig, logger *zap.Logger, makeRequest func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	var (
		lastStatus int
		lastErr    error
	)

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffFor(config, attempt)
			logger.Debug("retrying completion",
				zap.Int("attempt", attempt),
				zap.Int("last_status", lastStatus),
				zap.Duration("backoff", wait))
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}

		resp, err := makeRequest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastStatus, lastErr = 0, err
			continue
		}
		lastErr = nil

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		lastStatus = resp.StatusCode

		if !isRetryable(resp.StatusCode, config.RetryableStatuses) {
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		if retryAfter > 0 {
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return nil, err
			}
		}
	}

	return nil, &ErrMaxRetriesExceeded{
		Attempts:   config.MaxRetries + 1,
		LastStatus: lastStatus,
		LastErr:    lastErr,
	}
}

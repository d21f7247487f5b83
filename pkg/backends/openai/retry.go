package openai

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	defaultMaxAttempts = 3
	defaultBaseWait    = time.Second
)

// withRetry runs f up to attempts times with exponential backoff and jitter, retrying only on
// rate limiting and transient upstream failures.
func withRetry(ctx context.Context, attempts int, baseWait time.Duration, f func() error) error {
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(baseWait) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		lastErr = f()
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func shouldRetry(err error) bool {
	statusCode := 0

	apiErr := &goopenai.APIError{}
	requestErr := &goopenai.RequestError{}

	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.HTTPStatusCode
	case errors.As(err, &requestErr):
		statusCode = requestErr.HTTPStatusCode
	default:
		return false
	}

	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

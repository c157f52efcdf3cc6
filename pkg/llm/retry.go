package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// RetryConfig controls the retry decorator.
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	CallTimeout   time.Duration `json:"call_timeout"`
}

// DefaultRetryConfig provides reasonable defaults for provider calls.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:   3,
	InitialDelay:  200 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	CallTimeout:   2 * time.Minute,
}

// shouldRetry classifies provider errors. Cancellation and client errors are
// final; network trouble, rate limits and 5xx responses are retried.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "temporary") {
		return true
	}

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate") {
		return true
	}

	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") {
		return true
	}

	return false
}

// RetryingClient wraps a Client with bounded retries, exponential backoff and
// a per-call timeout.
type RetryingClient struct {
	next   Client
	config RetryConfig
}

// WithRetry decorates client with the given retry configuration. Zero values
// in config are filled from DefaultRetryConfig.
func WithRetry(client Client, config RetryConfig) *RetryingClient {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}

	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultRetryConfig.InitialDelay
	}

	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultRetryConfig.MaxDelay
	}

	if config.BackoffFactor <= 1 {
		config.BackoffFactor = DefaultRetryConfig.BackoffFactor
	}

	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultRetryConfig.CallTimeout
	}

	return &RetryingClient{next: client, config: config}
}

func (c *RetryingClient) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := time.Duration(float64(c.config.InitialDelay) * math.Pow(c.config.BackoffFactor, float64(attempt-2)))
	if delay > c.config.MaxDelay {
		delay = c.config.MaxDelay
	}

	return delay
}

func (c *RetryingClient) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(c.delay(attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
		content, err := c.next.Complete(callCtx, req)
		cancel()

		if err == nil {
			return content, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", lastErr
		}

		// The per-call timeout expiring while the parent context is still
		// live counts as a transient failure.
		if errors.Is(err, context.DeadlineExceeded) {
			continue
		}

		if !shouldRetry(err) {
			return "", lastErr
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", c.config.MaxAttempts, lastErr)
}

func (c *RetryingClient) ModelName() string {
	return c.next.ModelName()
}

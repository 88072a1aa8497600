// Package resilience guards the transcription upload: retry with
// exponential backoff for transient failures, a circuit breaker so a
// down transcription service cannot stall every finished recording.
package resilience

import (
	"context"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts       int           // Maximum number of attempts, including the first
	InitialBackoff    time.Duration // Backoff before the second attempt
	MaxBackoff        time.Duration // Backoff ceiling
	BackoffMultiplier float64       // Growth factor between attempts
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// IsRetryableFunc decides whether an error is worth another attempt
type IsRetryableFunc func(error) bool

// Retry executes fn with backoff until it succeeds, the attempts are
// exhausted, the error is non-retryable, or ctx is canceled.
func Retry(ctx context.Context, fn func() error, config *RetryConfig, isRetryable IsRetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	return lastErr
}

// IsRetryableTranscriptionError reports whether a transcription upload
// failure is transient. Auth and request-shape failures are not; network
// flakes and server-side overload are.
func IsRetryableTranscriptionError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	retryable := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"no such host",
		"EOF",
		"429",
		"502",
		"503",
		"504",
	}
	for _, fragment := range retryable {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

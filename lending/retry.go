package lending

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultSaveMaxAttempts  = 3
	defaultSaveBaseDelay    = 50 * time.Millisecond
	defaultSaveJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// retryConfig holds configuration for the exponential backoff of failed saves.
type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:  defaultSaveMaxAttempts,
		baseDelay:    defaultSaveBaseDelay,
		jitterFactor: defaultSaveJitterFactor,
	}
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of save attempts, including the first one.
// One attempt disables retries.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter added as a fraction of the backoff delay.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// retryWithExponentialBackoff runs fn until it succeeds, fails with a non-retryable error,
// or maxAttempts is reached. It returns the number of attempts made.
//
// Only errors matching ErrStoreUnavailable are retried; everything else fails fast.
func retryWithExponentialBackoff(ctx context.Context, config retryConfig, fn func(ctx context.Context) error) (int, error) {
	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter

			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return attempt, errors.Join(lastErr, ctx.Err())
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt + 1, nil
		}

		if !isRetryableError(lastErr) {
			return attempt + 1, lastErr
		}
	}

	return config.maxAttempts, lastErr
}

func isRetryableError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

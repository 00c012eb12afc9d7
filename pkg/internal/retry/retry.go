// Package retry backs off and retries the initial connection to a
// tensor-runtime engine process that hasn't finished starting up yet.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Config controls Do's backoff and retry behavior.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter adds a random 12.5-25% to each delay to avoid reconnect storms.
	Jitter bool
	// ShouldRetry decides whether an error should trigger another attempt.
	// Nil retries every error.
	ShouldRetry func(error) bool
}

// DefaultConfig retries up to 3 times with jittered exponential backoff
// from 1s up to 60s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// RetryFunc is the operation Do retries.
type RetryFunc func(ctx context.Context) error

// Do runs fn, retrying on failure per cfg until it succeeds, cfg.ShouldRetry
// rejects the error, retries are exhausted, or ctx is cancelled.
func Do(ctx context.Context, cfg Config, fn RetryFunc) error {
	if cfg.MaxRetries == 0 {
		cfg = DefaultConfig()
	}

	var lastErr error
	attempt := 0

	for attempt <= cfg.MaxRetries {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("context cancelled after %d attempts: %w", attempt, lastErr)
			}
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		attempt++

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return fmt.Errorf("non-retryable error after %d attempts: %w", attempt, err)
		}

		if attempt > cfg.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, err)
		}

		timer := time.NewTimer(calculateDelay(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt, lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// calculateDelay computes the jittered exponential backoff for attempt.
func calculateDelay(attempt int, cfg Config) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		jitter := delay * 0.25 * (0.5 + (float64(time.Now().UnixNano()%1000) / 2000.0))
		delay = delay + jitter
	}

	return time.Duration(delay)
}

// IsRetryable reports whether err should trigger another connection
// attempt. Context cancellation and deadline expiry are terminal; a local
// engine still coming up is anything else (connection refused, reset).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

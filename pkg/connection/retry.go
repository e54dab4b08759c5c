package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryConfig controls Retry.
type RetryConfig struct {
	// Name identifies the operation in logs.
	Name string

	// MaxAttempts bounds the number of calls. Zero means unlimited.
	MaxAttempts int

	// Backoff spaces the attempts. Defaults to NewBackoff().
	Backoff *Backoff

	// Retryable decides whether an error is worth another attempt.
	// Defaults to retrying every error.
	Retryable func(error) bool

	Logger *slog.Logger
}

// Retry calls op until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done.
func Retry(ctx context.Context, cfg RetryConfig, op func(context.Context) error) error {
	if cfg.Backoff == nil {
		cfg.Backoff = NewBackoff()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			cfg.Backoff.Reset()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", cfg.Name, ErrRetriesExhausted, attempt, err)
		}

		delay := cfg.Backoff.Next()
		cfg.Logger.Warn("Operation failed, retrying", "operation", cfg.Name, "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

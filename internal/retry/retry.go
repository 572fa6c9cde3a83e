// Package retry implements bounded retry with exponential backoff for
// operations against external resources (database, payment gateway).
package retry

import (
	"context"
	"time"

	"github.com/ondegooltd/fortisel-api/internal/logging"
)

type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultConfig mirrors the production defaults: 3 attempts, 1s initial
// delay, doubling up to a 10s cap. No jitter; backoff is deterministic.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// NextDelay returns the delay before attempt n+1 (n is zero-based):
// min(initial * multiplier^n, max).
func (c Config) NextDelay(prev time.Duration) time.Duration {
	next := time.Duration(float64(prev) * c.BackoffMultiplier)
	if next > c.MaxDelay {
		return c.MaxDelay
	}
	return next
}

// sleep is swapped out in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs op up to cfg.MaxAttempts times, sleeping between attempts with
// exponential backoff. On success after more than one attempt it logs the
// recovery; on exhaustion it returns the last error unchanged so callers
// decide how to present it. The backoff sleep honors ctx cancellation
// between attempts; a running attempt is never interrupted.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), cfg Config, label string) (T, error) {
	cfg = cfg.withDefaults()
	l := logging.FromCtx(ctx).With("operation", label)

	var zero T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		l.Debug("attempting operation",
			"attempt", attempt, "max_attempts", cfg.MaxAttempts, "type", "retry_attempt")

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				l.Info("operation succeeded after retry",
					"attempts", attempt, "type", "retry_success")
			}
			return result, nil
		}
		lastErr = err

		l.Warn("operation attempt failed",
			"attempt", attempt, "max_attempts", cfg.MaxAttempts,
			"error", err.Error(), "type", "retry_error")

		if attempt == cfg.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = cfg.NextDelay(delay)
	}

	l.Error("operation failed after all attempts",
		"attempts", cfg.MaxAttempts, "error", lastErr.Error(), "type", "retry_failed")
	return zero, lastErr
}

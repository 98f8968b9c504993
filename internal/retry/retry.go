// Package retry implements the bounded, jittered exponential-backoff retry
// driver used by every NetStorage operation.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
)

// Config controls a single WithBackoff invocation, mirroring spec §3's
// RetryConfig record.
type Config struct {
	Retries      int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Jitter       bool
	Classify     func(error) bool
	BeforeAttempt func(ctx context.Context) error
	OnRetry      func(err error, attempt int, delay time.Duration)

	// Sleep is a test seam, defaulting to a context-aware real sleep.
	// Grounded on the teacher's token-bucket test pattern of injectable
	// sleep funcs.
	Sleep func(ctx context.Context, d time.Duration)
}

// DefaultConfig returns the spec §3 defaults: retries=3, baseDelayMs=300,
// maxDelayMs=2000, jitter=true, default classification from
// netstorage.IsRetryable.
func DefaultConfig(classify func(error) bool) Config {
	return Config{
		Retries:   3,
		BaseDelay: 300 * time.Millisecond,
		MaxDelay:  2000 * time.Millisecond,
		Jitter:    true,
		Classify:  classify,
	}
}

func (c Config) sleep(ctx context.Context, d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(ctx, d)
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c Config) backoff(attempt int) time.Duration {
	exp := c.BaseDelay * (1 << attempt)
	if exp > c.MaxDelay || exp <= 0 {
		exp = c.MaxDelay
	}

	if !c.Jitter {
		return exp
	}

	return time.Duration(rand.Int64N(int64(exp) + 1)) //nolint:gosec
}

// WithBackoff executes fn with bounded retries per cfg, returning the
// first successful result or the last error once the retry budget is
// exhausted or cfg.Classify reports the error is not retryable.
//
// It invokes fn exactly k+1 times where k is the number of retryable
// failures observed, up to cfg.Retries, matching the invariant in
// spec §8.
func WithBackoff[T any](ctx context.Context, desc string, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero T
		err  error
		val  T
	)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if cfg.BeforeAttempt != nil {
			if err := cfg.BeforeAttempt(ctx); err != nil {
				return zero, err
			}
		}

		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}

		classify := cfg.Classify
		if classify == nil {
			classify = func(error) bool { return false }
		}

		if attempt >= cfg.Retries || !classify(err) {
			return zero, errors.Wrapf(err, "%s: giving up after %d attempt(s)", desc, attempt+1)
		}

		delay := cfg.backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(err, attempt, delay)
		}

		cfg.sleep(ctx, delay)
	}
}

// WithBackoffNoValue is WithBackoff for functions with no result value.
func WithBackoffNoValue(ctx context.Context, desc string, cfg Config, fn func(ctx context.Context) error) error {
	_, err := WithBackoff(ctx, desc, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/akamai/netstorage-go/internal/retry"
)

var errRetriable = errors.New("retriable")

func isRetriable(e error) bool {
	return errors.Is(e, errRetriable)
}

func TestWithBackoff(t *testing.T) {
	cnt := 0

	cases := []struct {
		desc      string
		f         func() (int, error)
		want      int
		wantError bool
	}{
		{"success-nil", func() (int, error) { return 0, nil }, 0, false},
		{"success", func() (int, error) { return 3, nil }, 3, false},
		{"retriable-succeeds", func() (int, error) {
			cnt++
			if cnt < 2 {
				return 0, errRetriable
			}
			return 4, nil
		}, 4, false},
		{"retriable-never-succeeds", func() (int, error) { return 0, errRetriable }, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := retry.Config{
				Retries:   3,
				BaseDelay: 0,
				MaxDelay:  0,
				Jitter:    false,
				Classify:  isRetriable,
			}

			got, err := retry.WithBackoff(context.Background(), tc.desc, cfg, func(context.Context) (int, error) {
				return tc.f()
			})

			if tc.wantError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tc.want, got)
		})
	}
}

func TestWithBackoffAttemptCount(t *testing.T) {
	attempts := 0

	cfg := retry.Config{
		Retries:   3,
		BaseDelay: 0,
		MaxDelay:  0,
		Classify:  isRetriable,
	}

	_, err := retry.WithBackoff(context.Background(), "count", cfg, func(context.Context) (int, error) {
		attempts++
		return 0, errRetriable
	})

	require.Error(t, err)
	require.Equal(t, 4, attempts) // k=3 retryable failures => 4 invocations
}

func TestWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := retry.Config{Retries: 3, Classify: isRetriable}

	err := retry.WithBackoffNoValue(ctx, "canceled", cfg, func(context.Context) error {
		return errRetriable
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestWithBackoffSleepsBetweenAttempts(t *testing.T) {
	var totalSleep time.Duration

	cfg := retry.Config{
		Retries:   3,
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  20 * time.Millisecond,
		Jitter:    false,
		Classify:  isRetriable,
		Sleep: func(_ context.Context, d time.Duration) {
			totalSleep += d
		},
	}

	_, err := retry.WithBackoff(context.Background(), "sleep", cfg, func(context.Context) (int, error) {
		return 0, errRetriable
	})

	require.Error(t, err)
	// min(10*2^0,20)+min(10*2^1,20)+min(10*2^2,20) = 10+20+20
	require.Equal(t, 50*time.Millisecond, totalSleep)
}

func TestWithBackoffBeforeAttempt(t *testing.T) {
	calls := 0

	cfg := retry.Config{
		Retries:  1,
		Classify: isRetriable,
		BeforeAttempt: func(context.Context) error {
			calls++
			return nil
		},
	}

	_, err := retry.WithBackoff(context.Background(), "before", cfg, func(context.Context) (int, error) {
		return 0, errRetriable
	})

	require.Error(t, err)
	require.Equal(t, 2, calls)
}

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akamai/netstorage-go/internal/ratelimit"
)

func TestBucketAllowsBurstUpToCapacity(t *testing.T) {
	b := ratelimit.NewBucket(5, time.Second)
	ctx := context.Background()

	start := time.Now()

	for range 5 {
		require.NoError(t, b.Acquire(ctx))
	}

	require.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestBucketBlocksBeyondCapacity(t *testing.T) {
	b := ratelimit.NewBucket(2, 200*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx))
	require.NoError(t, b.Acquire(ctx))

	start := time.Now()
	require.NoError(t, b.Acquire(ctx))
	require.Greater(t, time.Since(start), 50*time.Millisecond)
}

func TestClassForVerb(t *testing.T) {
	cases := map[string]ratelimit.Class{
		"dir":      ratelimit.ClassDir,
		"stat":     ratelimit.ClassRead,
		"du":       ratelimit.ClassRead,
		"download": ratelimit.ClassRead,
		"mkdir":    ratelimit.ClassWrite,
		"rmdir":    ratelimit.ClassWrite,
		"rm":       ratelimit.ClassWrite,
		"rename":   ratelimit.ClassWrite,
		"symlink":  ratelimit.ClassWrite,
		"mtime":    ratelimit.ClassWrite,
		"upload":   ratelimit.ClassWrite,
	}

	for verb, want := range cases {
		require.Equal(t, want, ratelimit.ClassForVerb(verb), verb)
	}
}

func TestLimitersAcquireRoutesToCorrectBucket(t *testing.T) {
	l := ratelimit.New(ratelimit.Limits{Read: 1, Write: 1, Dir: 1, IntervalMs: 1000})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, ratelimit.ClassRead))
	require.NoError(t, l.Acquire(ctx, ratelimit.ClassWrite))
	require.NoError(t, l.Acquire(ctx, ratelimit.ClassDir))
}

// Package ratelimit implements the three token-bucket rate limiters (read,
// write, dir) described in spec §4.2, built on top of golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Bucket is a single token bucket: tokensPerInterval tokens refill every
// interval, capped at tokensPerInterval, and Acquire blocks cooperatively
// until at least one token is available.
type Bucket struct {
	limiter *rate.Limiter
}

// NewBucket builds a bucket that refills tokensPerInterval tokens every
// interval, with burst capped at tokensPerInterval.
func NewBucket(tokensPerInterval int, interval time.Duration) *Bucket {
	if tokensPerInterval <= 0 {
		tokensPerInterval = 1
	}

	perToken := interval / time.Duration(tokensPerInterval)

	return &Bucket{limiter: rate.NewLimiter(rate.Every(perToken), tokensPerInterval)}
}

// Acquire blocks until a single token is available or ctx is done.
func (b *Bucket) Acquire(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Class identifies which bucket an operation draws from, per the fixed
// mapping in spec §4.2.
type Class int

const (
	// ClassRead covers stat, du, download.
	ClassRead Class = iota
	// ClassWrite covers mkdir, rmdir, rm, rename, symlink, mtime, upload.
	ClassWrite
	// ClassDir covers dir.
	ClassDir
)

// Limits configures the three buckets, mirroring spec §3's rateLimits
// record (defaults {800, 25, 50, 1000}).
type Limits struct {
	Read       int
	Write      int
	Dir        int
	IntervalMs int
}

// DefaultLimits returns the spec-mandated defaults.
func DefaultLimits() Limits {
	return Limits{Read: 800, Write: 25, Dir: 50, IntervalMs: 1000}
}

// Limiters holds the three independent buckets derived from a ClientConfig.
type Limiters struct {
	read  *Bucket
	write *Bucket
	dir   *Bucket
}

// New builds the three buckets from Limits.
func New(l Limits) *Limiters {
	interval := time.Duration(l.IntervalMs) * time.Millisecond

	return &Limiters{
		read:  NewBucket(l.Read, interval),
		write: NewBucket(l.Write, interval),
		dir:   NewBucket(l.Dir, interval),
	}
}

// Acquire blocks until a token is available in the bucket for class.
func (l *Limiters) Acquire(ctx context.Context, class Class) error {
	switch class {
	case ClassDir:
		return l.dir.Acquire(ctx)
	case ClassWrite:
		return l.write.Acquire(ctx)
	default:
		return l.read.Acquire(ctx)
	}
}

// ClassForVerb implements the fixed operation-to-bucket mapping from
// spec §4.2.
func ClassForVerb(verb string) Class {
	switch verb {
	case "dir":
		return ClassDir
	case "stat", "du", "download":
		return ClassRead
	default:
		// mkdir, rmdir, rm, rename, symlink, mtime, upload
		return ClassWrite
	}
}

package netstorage

import (
	"fmt"
	"time"

	"github.com/akamai/netstorage-go/internal/ratelimit"
	"github.com/akamai/netstorage-go/internal/signer"
	"github.com/akamai/netstorage-go/logging"
)

// Clock is the time/sleep seam ClientConfig carries: Now supplies the
// Unix-seconds timestamp the signer puts in the auth data, and Sleep
// replaces the retry driver's backoff sleep. The rate limiters do not use
// it. Production code leaves both fields nil and gets time.Now and a real,
// context-aware sleep; tests substitute a fake clock.
type Clock struct {
	Now   func() time.Time
	Sleep func(d time.Duration)
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}

	return time.Now()
}

// ClientConfig is the immutable, shared handle every NetStorage operation
// takes, per spec §3. Build one with NewClientConfig; it never changes
// after construction.
type ClientConfig struct {
	Key     string
	KeyName string
	Host    string
	SSL     bool
	CPCode  string

	TimeoutMs int

	RateLimits ratelimit.Limits

	Logger logging.Logger

	Clock Clock

	limiters *ratelimit.Limiters
	identity signer.Identity
}

// Option configures a ClientConfig at construction time.
type Option func(*ClientConfig)

// WithSSL toggles https.
func WithSSL(ssl bool) Option {
	return func(c *ClientConfig) { c.SSL = ssl }
}

// WithCPCode sets the CP code prefix prepended to every path.
func WithCPCode(cpCode string) Option {
	return func(c *ClientConfig) { c.CPCode = cpCode }
}

// WithTimeoutMs overrides the default request timeout.
func WithTimeoutMs(ms int) Option {
	return func(c *ClientConfig) { c.TimeoutMs = ms }
}

// WithRateLimits overrides the default token-bucket limits.
func WithRateLimits(l ratelimit.Limits) Option {
	return func(c *ClientConfig) { c.RateLimits = l }
}

// WithLogger installs a structured logger; the default is logging.Nop().
func WithLogger(l logging.Logger) Option {
	return func(c *ClientConfig) { c.Logger = l }
}

// WithClock installs a test clock/sleep seam.
func WithClock(clock Clock) Option {
	return func(c *ClientConfig) { c.Clock = clock }
}

// NewClientConfig validates key, keyName and host, applies defaults for
// everything else, and derives the rate limiters and signer identity, per
// spec §3. It returns a *ConfigValidationError for the first missing
// required field.
func NewClientConfig(key, keyName, host string, opts ...Option) (*ClientConfig, error) {
	cfg := &ClientConfig{
		Key:        key,
		KeyName:    keyName,
		Host:       host,
		TimeoutMs:  10000,
		RateLimits: ratelimit.DefaultLimits(),
		Logger:     logging.Nop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Key == "" {
		return nil, &ConfigValidationError{Field: "key"}
	}

	if cfg.KeyName == "" {
		return nil, &ConfigValidationError{Field: "keyName"}
	}

	if cfg.Host == "" {
		return nil, &ConfigValidationError{Field: "host"}
	}

	if cfg.TimeoutMs <= 0 {
		return nil, &ConfigValidationError{Field: "timeoutMs"}
	}

	cfg.limiters = ratelimit.New(cfg.RateLimits)
	cfg.identity = signer.Identity{Key: cfg.Key, KeyName: cfg.KeyName, CPCode: cfg.CPCode}

	return cfg, nil
}

// URI renders the full URL for path, per spec §3's derived uri(path)
// function: scheme from SSL, host, and the CP-code-prefixed path.
func (c *ClientConfig) URI(path string) string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s%s", scheme, c.Host, signer.NormalizePath(c.CPCode, path))
}

// Timeout returns TimeoutMs as a time.Duration.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c *ClientConfig) limiter() *ratelimit.Limiters {
	return c.limiters
}

func (c *ClientConfig) signerIdentity() signer.Identity {
	return c.identity
}

func (c *ClientConfig) unixNow() int64 {
	return c.Clock.now().Unix()
}

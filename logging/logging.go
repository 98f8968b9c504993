// Package logging provides the structured leveled logger interface consumed
// by the netstorage client core. The core never writes to stdout/stderr
// directly; it always goes through a Logger carried on the ClientConfig.
package logging

import (
	"strings"
	"testing"

	"github.com/sanity-io/litter"
	"go.uber.org/zap"
)

// Dump renders a value for inclusion in a debug/verbose log line using
// litter rather than fmt's "%+v", which is how large Go codebases tend to
// make nested record dumps (RemoteEntry, WalkEntry, ...) human-readable.
func Dump(v any) string {
	return litter.Sdump(v)
}

func formatKV(kv []any) string {
	if len(kv) == 0 {
		return ""
	}

	var b strings.Builder

	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}

		b.WriteString(litter.Sdump(kv[i]))
		b.WriteString("=")
		b.WriteString(litter.Sdump(kv[i+1]))
	}

	return b.String()
}

// Logger is the capability set the netstorage core requires: error, warn,
// info, verbose and debug, each accepting a message and an optional list of
// alternating key/value pairs.
type Logger interface {
	Error(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Info(msg string, kv ...any)
	Verbose(msg string, kv ...any)
	Debug(msg string, kv ...any)
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps a *zap.Logger as a Logger. Verbose is mapped onto
// zap's Info level with a "verbose" marker field since zap has no
// dedicated verbose level.
func NewZapLogger(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

func (l *zapLogger) Error(msg string, kv ...any)   { l.s.Errorw(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)    { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)    { l.s.Infow(msg, kv...) }
func (l *zapLogger) Debug(msg string, kv ...any)   { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Verbose(msg string, kv ...any) {
	l.s.Infow(msg, append(append([]any{}, kv...), "level", "verbose")...)
}

type nopLogger struct{}

// Nop returns a Logger that discards everything, the default when a
// ClientConfig is built without an explicit logger.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Error(string, ...any)   {}
func (nopLogger) Warn(string, ...any)    {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Verbose(string, ...any) {}
func (nopLogger) Debug(string, ...any)   {}

type testLogger struct {
	t testing.TB
}

// NewTestLogger returns a Logger that writes every line through t.Logf, so
// log output interleaves correctly with go test output and is only shown
// for failing tests.
func NewTestLogger(t testing.TB) Logger {
	return &testLogger{t: t}
}

func (l *testLogger) Error(msg string, kv ...any)   { l.t.Logf("ERROR %s %s", msg, formatKV(kv)) }
func (l *testLogger) Warn(msg string, kv ...any)    { l.t.Logf("WARN  %s %s", msg, formatKV(kv)) }
func (l *testLogger) Info(msg string, kv ...any)    { l.t.Logf("INFO  %s %s", msg, formatKV(kv)) }
func (l *testLogger) Verbose(msg string, kv ...any) { l.t.Logf("VERB  %s %s", msg, formatKV(kv)) }
func (l *testLogger) Debug(msg string, kv ...any)   { l.t.Logf("DEBUG %s %s", msg, formatKV(kv)) }

// Package main implements the netstorage command-line driver: a thin
// collaborator over the library surface in the root netstorage package,
// per spec §6. It reads configuration only from flags and environment
// variables; it does not implement the project/user config-file
// precedence chain described as out of scope for the core.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/logging"
)

// App holds the global flags and constructs a ClientConfig shared across
// every subcommand.
type App struct {
	key       string
	keyName   string
	host      string
	ssl       bool
	cpCode    string
	timeoutMs int64

	cancelAfterMs int64
	pretty        bool
	quiet         bool
	logLevel      string
	verbose       bool
	dryRun        bool

	stdoutWriter io.Writer
	stderrWriter io.Writer
	osExit       func(int)
}

// NewApp builds an App with real stdio/os.Exit wired in; tests substitute
// the stdoutWriter/stderrWriter/osExit fields.
func NewApp() *App {
	return &App{
		stdoutWriter: os.Stdout,
		stderrWriter: os.Stderr,
		osExit:       os.Exit,
	}
}

func (a *App) stdout() io.Writer { return a.stdoutWriter }
func (a *App) stderr() io.Writer { return a.stderrWriter }

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout(), format, args...) //nolint:errcheck
}

func (a *App) errorf(format string, args ...any) {
	fmt.Fprintf(a.stderr(), format, args...) //nolint:errcheck
}

func envDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}

	return fallback
}

func (a *App) setup(app *kingpin.Application) {
	app.Flag("key", "NetStorage API key").Envar("NETSTORAGE_API_KEY").StringVar(&a.key)
	app.Flag("key-name", "NetStorage API key name").Envar("NETSTORAGE_API_KEYNAME").StringVar(&a.keyName)
	app.Flag("host", "NetStorage host").Envar("NETSTORAGE_HOST").StringVar(&a.host)
	app.Flag("ssl", "Use https").Envar("NETSTORAGE_SSL").Default(envDefault("NETSTORAGE_SSL", "true")).BoolVar(&a.ssl)
	app.Flag("cp-code", "CP code to inject into every path").Envar("NETSTORAGE_CP_CODE").StringVar(&a.cpCode)
	app.Flag("timeout", "Per-request timeout in milliseconds").Default("10000").Int64Var(&a.timeoutMs)
	app.Flag("cancel-after", "Abort the whole invocation after this many milliseconds").Int64Var(&a.cancelAfterMs)
	app.Flag("pretty", "Pretty-print structured output").BoolVar(&a.pretty)
	app.Flag("quiet", "Suppress non-essential output").BoolVar(&a.quiet)
	app.Flag("log-level", "Log level: error, warn, info, debug").Default("warn").StringVar(&a.logLevel)
	app.Flag("verbose", "Verbose logging").BoolVar(&a.verbose)
	app.Flag("dry-run", "Do not perform any mutating operation").BoolVar(&a.dryRun)

	(&commandObject{}).setup(a, app)
	(&commandTransfer{}).setup(a, app)
	(&commandTree{}).setup(a, app)
	(&commandFind{}).setup(a, app)
	(&commandSync{}).setup(a, app)
	(&commandConfig{}).setup(a, app)
	(&commandRepl{}).setup(a, app)
}

// clientConfig builds the shared ClientConfig from global flags.
func (a *App) clientConfig() (*netstorage.ClientConfig, error) {
	var opts []netstorage.Option

	opts = append(opts, netstorage.WithSSL(a.ssl))

	if a.cpCode != "" {
		opts = append(opts, netstorage.WithCPCode(a.cpCode))
	}

	if a.timeoutMs > 0 {
		opts = append(opts, netstorage.WithTimeoutMs(int(a.timeoutMs)))
	}

	opts = append(opts, netstorage.WithLogger(a.logger()))

	return netstorage.NewClientConfig(a.key, a.keyName, a.host, opts...)
}

func (a *App) logger() logging.Logger {
	if a.quiet {
		return logging.Nop()
	}

	level := zap.WarnLevel

	switch a.logLevel {
	case "error":
		level = zap.ErrorLevel
	case "info":
		level = zap.InfoLevel
	case "debug":
		level = zap.DebugLevel
	}

	if a.verbose {
		level = zap.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return logging.Nop()
	}

	return logging.NewZapLogger(z)
}

// rootContext builds the context subcommands run under, applying
// --cancel-after when set.
func (a *App) rootContext() (context.Context, context.CancelFunc) {
	ctx := context.Background()

	if a.cancelAfterMs > 0 {
		return context.WithTimeout(ctx, time.Duration(a.cancelAfterMs)*time.Millisecond)
	}

	return ctx, func() {}
}

// clientAction wraps act so errors are mapped to the exit-code-1 contract
// in spec §7, and the ClientConfig/context plumbing is built once.
func (a *App) clientAction(act func(ctx context.Context, cfg *netstorage.ClientConfig) error) func(*kingpin.ParseContext) error {
	return func(*kingpin.ParseContext) error {
		cfg, err := a.clientConfig()
		if err != nil {
			a.reportError(err)
			a.osExit(1)

			return nil
		}

		ctx, cancel := a.rootContext()
		defer cancel()

		if err := act(ctx, cfg); err != nil {
			a.reportError(err)
			a.osExit(1)
		}

		return nil
	}
}

// reportError renders err per spec §7's CLI mapping.
func (a *App) reportError(err error) {
	var cve *netstorage.ConfigValidationError
	if errors.As(err, &cve) {
		a.errorf("config error: %s is not set (try: config set %s <value>)\n", cve.Field, cve.Field)
		return
	}

	var httpErr *netstorage.HTTPError
	if errors.As(err, &httpErr) {
		a.errorf("http error: %d %s %s %s\n", httpErr.Code, http.StatusText(httpErr.Code), httpErr.Method, httpErr.URL)
		return
	}

	a.errorf("error: %s\n", err)
}

func parseUnixSeconds(v string) (int64, error) {
	return strconv.ParseInt(v, 10, 64)
}

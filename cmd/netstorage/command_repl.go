package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/internal/xmlrecord"
)

// commandRepl implements repl: an interactive read-eval-print loop over
// stdin that tokenizes each line and dispatches to the same verbs the
// non-interactive subcommands use. It is intentionally thin: no history,
// no tab-completion, no quoting beyond whitespace-splitting, per the
// package doc comment's scoping of the CLI as a driver, not a shell.
type commandRepl struct {
	svc   *App
	stdin io.Reader
}

func (c *commandRepl) setup(svc *App, parent commandParent) {
	c.svc = svc

	repl := parent.Command("repl", "Start an interactive session")
	repl.Action(svc.clientAction(c.run))
}

func (c *commandRepl) run(ctx context.Context, cfg *netstorage.ClientConfig) error {
	stdin := c.stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	scanner := bufio.NewScanner(stdin)
	c.svc.printf("netstorage repl, type 'help' for a command list, 'exit' to quit\n")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			c.printHelp()
		default:
			if err := c.dispatch(ctx, cfg, args); err != nil {
				c.svc.reportError(err)
			}
		}
	}

	return scanner.Err()
}

func (c *commandRepl) printHelp() {
	c.svc.printf("commands: stat|dir|du|mkdir|rmdir|rm <path>, rename <path> <dest>, symlink <path> <target>, mtime <path> <seconds>, exit\n")
}

func (c *commandRepl) dispatch(ctx context.Context, cfg *netstorage.ClientConfig, args []string) error {
	verb := args[0]
	rest := args[1:]

	switch verb {
	case "stat":
		return c.requireArgs(rest, 1, func() error {
			rec, err := netstorage.Stat(ctx, cfg, rest[0])
			if err != nil {
				return err
			}
			c.printRecord(rec)
			return nil
		})
	case "dir":
		return c.requireArgs(rest, 1, func() error {
			rec, err := netstorage.Dir(ctx, cfg, rest[0])
			if err != nil {
				return err
			}
			c.printRecord(rec)
			return nil
		})
	case "du":
		return c.requireArgs(rest, 1, func() error {
			rec, err := netstorage.Du(ctx, cfg, rest[0])
			if err != nil {
				return err
			}
			if info, ok := rec.DUInfo(); ok {
				c.svc.printf("files=%s bytes=%s\n", info.Files, info.Bytes)
			}
			return nil
		})
	case "mkdir":
		return c.requireArgs(rest, 1, func() error { return netstorage.Mkdir(ctx, cfg, rest[0]) })
	case "rmdir":
		return c.requireArgs(rest, 1, func() error { return netstorage.Rmdir(ctx, cfg, rest[0]) })
	case "rm":
		return c.requireArgs(rest, 1, func() error { return netstorage.Rm(ctx, cfg, rest[0]) })
	case "rename":
		return c.requireArgs(rest, 2, func() error { return netstorage.Rename(ctx, cfg, rest[0], rest[1]) })
	case "symlink":
		return c.requireArgs(rest, 2, func() error { return netstorage.Symlink(ctx, cfg, rest[0], rest[1]) })
	case "mtime":
		return c.requireArgs(rest, 2, func() error {
			seconds, err := strconv.ParseInt(rest[1], 10, 64)
			if err != nil {
				return &netstorage.NotADateError{Value: rest[1]}
			}
			return netstorage.Mtime(ctx, cfg, rest[0], seconds)
		})
	default:
		c.svc.printf("unknown command %q, type 'help'\n", verb)
		return nil
	}
}

func (c *commandRepl) requireArgs(args []string, n int, fn func() error) error {
	if len(args) < n {
		c.svc.printf("usage error: expected at least %d argument(s)\n", n)
		return nil
	}

	return fn()
}

func (c *commandRepl) printRecord(rec *xmlrecord.Record) {
	for _, f := range rec.Files() {
		c.svc.printf("%s\t%s\t%s\t%s\n", f.Name, f.Type, f.Size, f.MTime)
	}
}

package main

import (
	"context"

	"github.com/gobwas/glob"
	pkgerrors "github.com/pkg/errors"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/walk"
)

// commandFind implements the supplemented find subcommand: a thin
// composition of the remote walker with a name-glob and min/max-depth
// filter, with no core counterpart of its own.
type commandFind struct {
	svc *App

	path     string
	name     string
	minDepth uint32
	maxDepth uint32
}

func (c *commandFind) setup(svc *App, parent commandParent) {
	c.svc = svc

	cmd := parent.Command("find", "Recursively search a remote directory")
	cmd.Arg("path", "Remote path").Required().StringVar(&c.path)
	cmd.Flag("name", "Glob pattern matched against each entry's name").StringVar(&c.name)
	cmd.Flag("min-depth", "Minimum depth relative to path").Uint32Var(&c.minDepth)
	cmd.Flag("max-depth", "Maximum depth relative to path").Uint32Var(&c.maxDepth)
	cmd.Action(svc.clientAction(c.run))
}

func (c *commandFind) run(ctx context.Context, cfg *netstorage.ClientConfig) error {
	var namePattern glob.Glob

	if c.name != "" {
		g, err := glob.Compile(c.name)
		if err != nil {
			return pkgerrors.Wrap(err, "compile --name pattern")
		}

		namePattern = g
	}

	opts := walk.Options{}

	if c.maxDepth > 0 {
		opts.MaxDepth = c.maxDepth
		opts.HasMaxDepth = true
	}

	w := walk.New(ctx, cfg, c.path, opts)

	for {
		entry, ok, err := w.Next()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		if entry.Depth < c.minDepth {
			continue
		}

		if namePattern != nil && !namePattern.Match(entry.File.Name) {
			continue
		}

		c.svc.printf("%s\n", entry.Path)
	}

	return nil
}

package main

import (
	"context"

	"golang.org/x/text/language"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/adjacency"
	"github.com/akamai/netstorage-go/treeview"
	"github.com/akamai/netstorage-go/walk"
)

// commandTree implements the tree subcommand: render a remote subtree as
// a locale-sorted ASCII tree with optional size/mtime/md5 columns.
type commandTree struct {
	svc *App

	path       string
	maxDepth   uint32
	showSize   bool
	showMtime  bool
	showMD5    bool
	showTarget bool
}

func (c *commandTree) setup(svc *App, parent commandParent) {
	c.svc = svc

	cmd := parent.Command("tree", "Render a remote directory as a tree")
	cmd.Arg("path", "Remote path").Required().StringVar(&c.path)
	cmd.Flag("max-depth", "Limit recursion depth").Uint32Var(&c.maxDepth)
	cmd.Flag("size", "Show aggregated size").BoolVar(&c.showSize)
	cmd.Flag("mtime", "Show modification time").BoolVar(&c.showMtime)
	cmd.Flag("md5", "Show MD5 checksum").BoolVar(&c.showMD5)
	cmd.Flag("target", "Show symlink targets").BoolVar(&c.showTarget)
	cmd.Action(svc.clientAction(c.run))
}

func (c *commandTree) run(ctx context.Context, cfg *netstorage.ClientConfig) error {
	opts := walk.Options{}

	if c.maxDepth > 0 {
		opts.MaxDepth = c.maxDepth
		opts.HasMaxDepth = true
	}

	result, err := adjacency.BuildAdjacencyList(ctx, cfg, c.path, opts)
	if err != nil {
		return err
	}

	var columns []treeview.Column

	if c.showSize {
		columns = append(columns, treeview.ColumnSize)
	}

	if c.showMtime {
		columns = append(columns, treeview.ColumnMtime)
	}

	if c.showMD5 {
		columns = append(columns, treeview.ColumnMD5)
	}

	if c.showTarget {
		columns = append(columns, treeview.ColumnSymlinkTarget)
	}

	out := treeview.Render(result, treeview.Options{Columns: columns, Language: language.English})

	c.svc.printf("%s", out)

	return nil
}

package main

import (
	"context"

	"github.com/alecthomas/kingpin/v2"
	pkgerrors "github.com/pkg/errors"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/internal/xmlrecord"
)

// commandParent is implemented by *kingpin.Application and *kingpin.CmdClause,
// letting a command group attach either at the root or under a subcommand.
type commandParent interface {
	Command(name, help string) *kingpin.CmdClause
}

// commandObject groups the single-path verbs: stat, dir, du, mkdir,
// rmdir, rm, rename, symlink, mtime.
type commandObject struct {
	svc *App

	path string

	renameDestination string
	symlinkTarget     string
	mtimeValue        string
}

func (c *commandObject) setup(svc *App, parent commandParent) {
	c.svc = svc

	stat := parent.Command("stat", "Show metadata for a single object")
	stat.Arg("path", "Remote path").Required().StringVar(&c.path)
	stat.Action(svc.clientAction(c.runStat))

	dir := parent.Command("dir", "List a directory")
	dir.Arg("path", "Remote path").Required().StringVar(&c.path)
	dir.Action(svc.clientAction(c.runDir))

	du := parent.Command("du", "Report recursive disk usage for a directory")
	du.Arg("path", "Remote path").Required().StringVar(&c.path)
	du.Action(svc.clientAction(c.runDu))

	mkdir := parent.Command("mkdir", "Create a directory")
	mkdir.Arg("path", "Remote path").Required().StringVar(&c.path)
	mkdir.Action(svc.clientAction(c.runMkdir))

	rmdir := parent.Command("rmdir", "Remove an empty directory")
	rmdir.Arg("path", "Remote path").Required().StringVar(&c.path)
	rmdir.Action(svc.clientAction(c.runRmdir))

	rm := parent.Command("rm", "Remove a file")
	rm.Arg("path", "Remote path").Required().StringVar(&c.path)
	rm.Action(svc.clientAction(c.runRm))

	rename := parent.Command("rename", "Rename/move an object")
	rename.Arg("path", "Remote source path").Required().StringVar(&c.path)
	rename.Arg("destination", "Remote destination path").Required().StringVar(&c.renameDestination)
	rename.Action(svc.clientAction(c.runRename))

	symlink := parent.Command("symlink", "Create a symbolic link")
	symlink.Arg("path", "Remote link path").Required().StringVar(&c.path)
	symlink.Arg("target", "Link target").Required().StringVar(&c.symlinkTarget)
	symlink.Action(svc.clientAction(c.runSymlink))

	mtime := parent.Command("mtime", "Set an object's modification time")
	mtime.Arg("path", "Remote path").Required().StringVar(&c.path)
	mtime.Arg("unix-seconds", "New mtime, as Unix seconds").Required().StringVar(&c.mtimeValue)
	mtime.Action(svc.clientAction(c.runMtime))
}

func (c *commandObject) printRecord(rec *xmlrecord.Record) {
	for _, f := range rec.Files() {
		if c.svc.pretty {
			c.svc.printf("%-30s %-8s %12s %s\n", f.Name, f.Type, f.Size, f.MTime)
		} else {
			c.svc.printf("%s\t%s\t%s\t%s\n", f.Name, f.Type, f.Size, f.MTime)
		}
	}
}

func (c *commandObject) runStat(ctx context.Context, cfg *netstorage.ClientConfig) error {
	rec, err := netstorage.Stat(ctx, cfg, c.path)
	if err != nil {
		return err
	}

	c.printRecord(rec)

	return nil
}

func (c *commandObject) runDir(ctx context.Context, cfg *netstorage.ClientConfig) error {
	rec, err := netstorage.Dir(ctx, cfg, c.path)
	if err != nil {
		return err
	}

	c.printRecord(rec)

	return nil
}

func (c *commandObject) runDu(ctx context.Context, cfg *netstorage.ClientConfig) error {
	rec, err := netstorage.Du(ctx, cfg, c.path)
	if err != nil {
		return err
	}

	info, ok := rec.DUInfo()
	if !ok {
		return nil
	}

	c.svc.printf("files=%s bytes=%s\n", info.Files, info.Bytes)

	return nil
}

func (c *commandObject) runMkdir(ctx context.Context, cfg *netstorage.ClientConfig) error {
	if c.svc.dryRun {
		c.svc.printf("dry-run: mkdir %s\n", c.path)
		return nil
	}

	return netstorage.Mkdir(ctx, cfg, c.path)
}

func (c *commandObject) runRmdir(ctx context.Context, cfg *netstorage.ClientConfig) error {
	if c.svc.dryRun {
		c.svc.printf("dry-run: rmdir %s\n", c.path)
		return nil
	}

	return netstorage.Rmdir(ctx, cfg, c.path)
}

func (c *commandObject) runRm(ctx context.Context, cfg *netstorage.ClientConfig) error {
	if c.svc.dryRun {
		c.svc.printf("dry-run: rm %s\n", c.path)
		return nil
	}

	return netstorage.Rm(ctx, cfg, c.path)
}

func (c *commandObject) runRename(ctx context.Context, cfg *netstorage.ClientConfig) error {
	if c.svc.dryRun {
		c.svc.printf("dry-run: rename %s -> %s\n", c.path, c.renameDestination)
		return nil
	}

	return netstorage.Rename(ctx, cfg, c.path, c.renameDestination)
}

func (c *commandObject) runSymlink(ctx context.Context, cfg *netstorage.ClientConfig) error {
	if c.svc.dryRun {
		c.svc.printf("dry-run: symlink %s -> %s\n", c.path, c.symlinkTarget)
		return nil
	}

	return netstorage.Symlink(ctx, cfg, c.path, c.symlinkTarget)
}

func (c *commandObject) runMtime(ctx context.Context, cfg *netstorage.ClientConfig) error {
	seconds, err := parseUnixSeconds(c.mtimeValue)
	if err != nil {
		return &netstorage.NotADateError{Value: c.mtimeValue}
	}

	if c.svc.dryRun {
		c.svc.printf("dry-run: mtime %s %d\n", c.path, seconds)
		return nil
	}

	if err := netstorage.Mtime(ctx, cfg, c.path, seconds); err != nil {
		return pkgerrors.Wrapf(err, "mtime %s", c.path)
	}

	return nil
}

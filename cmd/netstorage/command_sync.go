package main

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/nssync"
)

// commandSync implements the sync subcommand over nssync.SyncDirectory.
type commandSync struct {
	svc *App

	localPath  string
	remotePath string

	direction        string
	compareStrategy  string
	conflictResolve  string
	deleteExtraneous string
}

func (c *commandSync) setup(svc *App, parent commandParent) {
	c.svc = svc

	cmd := parent.Command("sync", "Reconcile a local directory with a remote directory")
	cmd.Arg("local-path", "Local directory").Required().StringVar(&c.localPath)
	cmd.Arg("remote-path", "Remote directory").Required().StringVar(&c.remotePath)
	cmd.Flag("direction", "upload, download, or both").Default("both").EnumVar(&c.direction, "upload", "download", "both")
	cmd.Flag("compare", "exists, size, mtime, or checksum").Default("size").EnumVar(&c.compareStrategy, "exists", "size", "mtime", "checksum")
	cmd.Flag("conflict", "preferLocal, preferRemote, or manual").Default("manual").EnumVar(&c.conflictResolve, "preferLocal", "preferRemote", "manual")
	cmd.Flag("delete-extraneous", "none, local, remote, or both").Default("none").EnumVar(&c.deleteExtraneous, "none", "local", "remote", "both")
	cmd.Action(svc.clientAction(c.run))
}

func (c *commandSync) run(ctx context.Context, cfg *netstorage.ClientConfig) error {
	direction, err := parseDirection(c.direction)
	if err != nil {
		return err
	}

	compare, err := parseCompareStrategy(c.compareStrategy)
	if err != nil {
		return err
	}

	conflict, err := parseConflictResolution(c.conflictResolve)
	if err != nil {
		return err
	}

	deleteExtraneous, err := parseDeleteExtraneous(c.deleteExtraneous)
	if err != nil {
		return err
	}

	result, err := nssync.SyncDirectory(ctx, cfg, c.localPath, c.remotePath, nssync.Options{
		Direction:          direction,
		CompareStrategy:    compare,
		ConflictResolution: conflict,
		DeleteExtraneous:   deleteExtraneous,
		DryRun:             c.svc.dryRun,
		OnTransfer: func(ev nssync.TransferEvent) {
			if !c.svc.quiet {
				c.svc.printf("transferred %s (%d bytes)\n", ev.RelativePath, ev.Bytes)
			}
		},
		OnSkip: func(ev nssync.SkipEvent) {
			if c.svc.verbose {
				c.svc.printf("skipped %s (%s)\n", ev.RelativePath, ev.Reason)
			}
		},
	})
	if err != nil {
		return err
	}

	c.svc.printf("%d transferred, %d skipped\n", len(result.Transferred), len(result.Skipped))

	return nil
}

func parseDirection(v string) (nssync.Direction, error) {
	switch v {
	case "upload":
		return nssync.DirectionUpload, nil
	case "download":
		return nssync.DirectionDownload, nil
	case "both":
		return nssync.DirectionBoth, nil
	default:
		return 0, pkgerrors.Errorf("unknown direction %q", v)
	}
}

func parseCompareStrategy(v string) (nssync.CompareStrategy, error) {
	switch v {
	case "exists":
		return nssync.CompareExists, nil
	case "size":
		return nssync.CompareSize, nil
	case "mtime":
		return nssync.CompareMtime, nil
	case "checksum":
		return nssync.CompareChecksum, nil
	default:
		return 0, pkgerrors.Errorf("unknown compare strategy %q", v)
	}
}

func parseConflictResolution(v string) (nssync.ConflictResolution, error) {
	switch v {
	case "preferLocal":
		return nssync.PreferLocal, nil
	case "preferRemote":
		return nssync.PreferRemote, nil
	case "manual":
		return nssync.Manual, nil
	default:
		return 0, pkgerrors.Errorf("unknown conflict resolution %q", v)
	}
}

func parseDeleteExtraneous(v string) (nssync.DeleteExtraneous, error) {
	switch v {
	case "none":
		return nssync.DeleteNone, nil
	case "local":
		return nssync.DeleteLocal, nil
	case "remote":
		return nssync.DeleteRemote, nil
	case "both":
		return nssync.DeleteBoth, nil
	default:
		return 0, pkgerrors.Errorf("unknown delete-extraneous mode %q", v)
	}
}

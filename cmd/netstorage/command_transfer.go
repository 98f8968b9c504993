package main

import (
	"context"
	"os"

	pkgerrors "github.com/pkg/errors"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/dirops"
)

// commandTransfer implements upload and download, each dispatching to a
// single-file or whole-directory operation depending on --recursive.
type commandTransfer struct {
	svc *App

	uploadLocal     string
	uploadRemote    string
	uploadRecursive bool
	uploadOverwrite bool

	downloadRemote    string
	downloadLocal     string
	downloadRecursive bool
	downloadOverwrite bool
}

func (c *commandTransfer) setup(svc *App, parent commandParent) {
	c.svc = svc

	upload := parent.Command("upload", "Upload a local file or directory")
	upload.Arg("local-path", "Local source path").Required().StringVar(&c.uploadLocal)
	upload.Arg("remote-path", "Remote destination path").Required().StringVar(&c.uploadRemote)
	upload.Flag("recursive", "Upload a directory tree").BoolVar(&c.uploadRecursive)
	upload.Flag("overwrite", "Overwrite existing remote files").BoolVar(&c.uploadOverwrite)
	upload.Action(svc.clientAction(c.runUpload))

	download := parent.Command("download", "Download a remote file or directory")
	download.Arg("remote-path", "Remote source path").Required().StringVar(&c.downloadRemote)
	download.Arg("local-path", "Local destination path").Required().StringVar(&c.downloadLocal)
	download.Flag("recursive", "Download a directory tree").BoolVar(&c.downloadRecursive)
	download.Flag("overwrite", "Overwrite existing local files").BoolVar(&c.downloadOverwrite)
	download.Action(svc.clientAction(c.runDownload))
}

func (c *commandTransfer) runUpload(ctx context.Context, cfg *netstorage.ClientConfig) error {
	if c.uploadRecursive {
		records, err := dirops.UploadDirectory(ctx, cfg, c.uploadLocal, c.uploadRemote, dirops.UploadDirectoryOptions{
			Overwrite: c.uploadOverwrite,
			DryRun:    c.svc.dryRun,
			OnUpload: func(r dirops.UploadRecord) {
				if !c.svc.quiet {
					c.svc.printf("uploaded %s -> %s (%d bytes)\n", r.LocalPath, r.RemotePath, r.Size)
				}
			},
		})
		if err != nil {
			return err
		}

		c.svc.printf("uploaded %d files\n", len(records))

		return nil
	}

	if c.svc.dryRun {
		c.svc.printf("dry-run: upload %s -> %s\n", c.uploadLocal, c.uploadRemote)
		return nil
	}

	f, err := os.Open(c.uploadLocal)
	if err != nil {
		return pkgerrors.Wrap(err, "open local file")
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return pkgerrors.Wrap(err, "stat local file")
	}

	if !c.uploadOverwrite {
		exists, err := netstorage.FileExists(ctx, cfg, c.uploadRemote)
		if err != nil {
			return err
		}

		if exists {
			return pkgerrors.Errorf("%s already exists remotely (pass --overwrite to replace it)", c.uploadRemote)
		}
	}

	return netstorage.Upload(ctx, cfg, c.uploadRemote, f, info.Size(), nil)
}

func (c *commandTransfer) runDownload(ctx context.Context, cfg *netstorage.ClientConfig) error {
	if c.downloadRecursive {
		records, err := dirops.DownloadDirectory(ctx, cfg, c.downloadRemote, c.downloadLocal, dirops.DownloadDirectoryOptions{
			Overwrite: c.downloadOverwrite,
			DryRun:    c.svc.dryRun,
			OnDownload: func(r dirops.DownloadRecord) {
				if !c.svc.quiet {
					c.svc.printf("downloaded %s -> %s (%d bytes)\n", r.RemotePath, r.LocalPath, r.Size)
				}
			},
		})
		if err != nil {
			return err
		}

		c.svc.printf("downloaded %d files\n", len(records))

		return nil
	}

	if c.svc.dryRun {
		c.svc.printf("dry-run: download %s -> %s\n", c.downloadRemote, c.downloadLocal)
		return nil
	}

	if !c.downloadOverwrite {
		if _, err := os.Stat(c.downloadLocal); err == nil {
			return pkgerrors.Errorf("%s already exists locally (pass --overwrite to replace it)", c.downloadLocal)
		}
	}

	f, err := os.Create(c.downloadLocal)
	if err != nil {
		return pkgerrors.Wrap(err, "create local file")
	}
	defer f.Close() //nolint:errcheck

	return netstorage.Download(ctx, cfg, c.downloadRemote, f, nil)
}

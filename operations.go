// Package netstorage implements the core NetStorage client: configuration,
// the signed/rate-limited/retrying request pipeline, and the one function
// per protocol verb described in spec §4.6.
package netstorage

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/akamai/netstorage-go/internal/ratelimit"
	"github.com/akamai/netstorage-go/internal/retry"
	"github.com/akamai/netstorage-go/internal/signer"
	"github.com/akamai/netstorage-go/internal/transport"
	"github.com/akamai/netstorage-go/internal/xmlrecord"
)

// withDeadline applies cfg's timeout to ctx unless ctx already carries an
// earlier deadline, implementing the signal-resolution precedence of
// spec §4.4: an explicit caller signal always wins over the config-wide
// timeout.
func (c *ClientConfig) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.Timeout())
}

func (c *ClientConfig) endpoint() transport.Endpoint {
	return transport.Endpoint{
		Host:   c.Host,
		SSL:    c.SSL,
		CPCode: c.CPCode,
		Signer: c.signerIdentity(),
		Clock:  c.unixNow,
	}
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}

	var he *transport.HTTPErrorInfo
	if pkgerrors.As(err, &he) {
		return &HTTPError{Code: he.Code, Method: he.Method, URL: he.URL, BodySnippet: he.BodySnippet}
	}

	var ne *transport.NetworkErrorInfo
	if pkgerrors.As(err, &ne) {
		return &NetworkError{Kind: networkKind(ne.Kind), Cause: ne.Cause}
	}

	return &InternalError{Message: "unclassified transport error", Cause: err}
}

func networkKind(kind string) NetworkErrorKind {
	switch kind {
	case "timeout":
		return NetworkTimeout
	case "dnsFailure":
		return NetworkDNSFailure
	case "aborted":
		return NetworkAborted
	default:
		return NetworkReset
	}
}

func (c *ClientConfig) retryConfig(class ratelimit.Class) retry.Config {
	return retry.Config{
		Retries:   3,
		BaseDelay: 300 * time.Millisecond,
		MaxDelay:  2000 * time.Millisecond,
		Jitter:    true,
		Classify:  IsRetryable,
		BeforeAttempt: func(ctx context.Context) error {
			return c.limiter().Acquire(ctx, class)
		},
		Sleep: func(ctx context.Context, d time.Duration) {
			if c.Clock.Sleep != nil {
				c.Clock.Sleep(d)
				return
			}

			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// buffered runs a small-bodied verb through the retry driver and returns
// its parsed XML record.
func (c *ClientConfig) buffered(ctx context.Context, desc, method, verb, path string, params map[string]string, extraHeaders map[string]string) (*xmlrecord.Record, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	class := ratelimit.ClassForVerb(verb)

	rec, err := retry.WithBackoff(ctx, desc, c.retryConfig(class), func(ctx context.Context) (*xmlrecord.Record, error) {
		req, err := transport.BuildRequest(ctx, c.endpoint(), method, verb, path, params, extraHeaders, nil)
		if err != nil {
			return nil, &InternalError{Message: "building request", Cause: err}
		}

		b := &transport.Buffered{}

		rec, err := b.Do(req)
		if err != nil {
			return nil, translateErr(err)
		}

		return rec, nil
	})
	if err != nil {
		return nil, unwrapRetry(err)
	}

	return rec, nil
}

// unwrapRetry strips the retry driver's "giving up after N attempts"
// wrapper so callers see the typed netstorage error, not its text wrapper,
// and classifies a bare context cancellation/deadline as a typed
// NetworkError(aborted) per spec §7 rather than leaking context.Canceled or
// context.DeadlineExceeded directly.
func unwrapRetry(err error) error {
	cause := pkgerrors.Cause(err)
	if cause == nil {
		cause = err
	}

	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return &NetworkError{Kind: NetworkAborted, Cause: cause}
	}

	return cause
}

// Stat issues the stat verb against path. The response may carry one or
// more <file> records or a <directory> record, per spec §4.6.
func Stat(ctx context.Context, cfg *ClientConfig, path string) (*xmlrecord.Record, error) {
	return cfg.buffered(ctx, "stat", "GET", "stat", path, map[string]string{"action": "stat"}, nil)
}

// Dir issues the dir verb against path, returning one server page; the
// driver does not paginate, per spec §4.6's explicit note and Open
// Question 2.
func Dir(ctx context.Context, cfg *ClientConfig, path string) (*xmlrecord.Record, error) {
	return cfg.buffered(ctx, "dir", "GET", "dir", path, map[string]string{"action": "dir"}, nil)
}

// Du issues the du verb against path, returning the aggregate file count
// and byte count under du-info.
func Du(ctx context.Context, cfg *ClientConfig, path string) (*xmlrecord.Record, error) {
	return cfg.buffered(ctx, "du", "GET", "du", path, map[string]string{"action": "du"}, nil)
}

// Mkdir creates a directory at path.
func Mkdir(ctx context.Context, cfg *ClientConfig, path string) error {
	_, err := cfg.buffered(ctx, "mkdir", "PUT", "mkdir", path, map[string]string{"action": "mkdir"}, nil)
	return err
}

// Rmdir removes an empty explicit directory at path.
func Rmdir(ctx context.Context, cfg *ClientConfig, path string) error {
	_, err := cfg.buffered(ctx, "rmdir", "PUT", "rmdir", path, map[string]string{"action": "rmdir"}, nil)
	return err
}

// Rm deletes the file or symlink at path.
func Rm(ctx context.Context, cfg *ClientConfig, path string) error {
	_, err := cfg.buffered(ctx, "rm", "PUT", "delete", path, map[string]string{"action": "delete"}, nil)
	return err
}

// Rename moves the object at path to destination. It returns an
// *InvalidHeaderValueError if destination contains control characters or
// CR/LF, which would otherwise corrupt the X-Akamai-ACS-Action header
// destination is placed in.
func Rename(ctx context.Context, cfg *ClientConfig, path, destination string) error {
	if !signer.ValidHeaderValue(destination) {
		return &InvalidHeaderValueError{Field: "destination", Value: destination}
	}

	_, err := cfg.buffered(ctx, "rename", "PUT", "rename", path,
		map[string]string{"action": "rename", "destination": destination}, nil)
	return err
}

// Symlink creates a symbolic link at path pointing at target. It returns
// an *InvalidHeaderValueError if target contains control characters or
// CR/LF.
func Symlink(ctx context.Context, cfg *ClientConfig, path, target string) error {
	if !signer.ValidHeaderValue(target) {
		return &InvalidHeaderValueError{Field: "target", Value: target}
	}

	_, err := cfg.buffered(ctx, "symlink", "PUT", "symlink", path,
		map[string]string{"action": "symlink", "target": target}, nil)
	return err
}

// Mtime sets the modification time of the object at path to unixSeconds.
// It returns a *NotADateError if unixSeconds does not represent a valid
// instant (negative, per spec §4.6).
func Mtime(ctx context.Context, cfg *ClientConfig, path string, unixSeconds int64) error {
	if unixSeconds < 0 {
		return &NotADateError{Value: strconv.FormatInt(unixSeconds, 10)}
	}

	_, err := cfg.buffered(ctx, "mtime", "PUT", "mtime", path,
		map[string]string{"action": "mtime", "mtime": strconv.FormatInt(unixSeconds, 10)}, nil)
	return err
}

// Upload streams r (exactly size bytes) to path, invoking onProgress as
// bytes are sent. onProgress may be nil. When r is an io.Seeker, each
// retried attempt seeks back to r's starting offset; a non-seekable r is
// not rewound.
func Upload(ctx context.Context, cfg *ClientConfig, path string, r io.Reader, size int64, onProgress func(int64)) error {
	ctx, cancel := cfg.withDeadline(ctx)
	defer cancel()

	class := ratelimit.ClassForVerb("upload")

	seeker, canSeek := r.(io.Seeker)
	start := int64(-1)

	if canSeek {
		if pos, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			start = pos
		}
	}

	return unwrapRetry(retry.WithBackoffNoValue(ctx, "upload", cfg.retryConfig(class), func(ctx context.Context) error {
		if start >= 0 {
			if _, err := seeker.Seek(start, io.SeekStart); err != nil {
				return &InternalError{Message: "rewinding upload body", Cause: err}
			}
		}

		cr := transport.NewCountingReader(r, onProgress)

		req, err := transport.BuildRequest(ctx, cfg.endpoint(), "PUT", "upload", path,
			map[string]string{"action": "upload", "upload-type": "binary"}, nil, cr)
		if err != nil {
			return &InternalError{Message: "building request", Cause: err}
		}

		req.ContentLength = size

		s := &transport.Stream{}
		if err := s.Upload(req); err != nil {
			return translateErr(err)
		}

		return nil
	}))
}

// Download streams path's bytes into w, invoking onProgress as bytes
// arrive. onProgress may be nil.
func Download(ctx context.Context, cfg *ClientConfig, path string, w io.Writer, onProgress func(int64)) error {
	ctx, cancel := cfg.withDeadline(ctx)
	defer cancel()

	class := ratelimit.ClassForVerb("download")

	return unwrapRetry(retry.WithBackoffNoValue(ctx, "download", cfg.retryConfig(class), func(ctx context.Context) error {
		req, err := transport.BuildRequest(ctx, cfg.endpoint(), "GET", "download", path, nil, nil, nil)
		if err != nil {
			return &InternalError{Message: "building request", Cause: err}
		}

		s := &transport.Stream{}
		if err := s.Download(req, w, onProgress); err != nil {
			return translateErr(err)
		}

		return nil
	}))
}

// FileExists reports whether path exists, per spec §4.6: stat succeeds and
// carries a file record ⇒ true; Http(404) ⇒ false; any other error is
// re-raised.
func FileExists(ctx context.Context, cfg *ClientConfig, path string) (bool, error) {
	rec, err := Stat(ctx, cfg, path)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return len(rec.Files()) > 0, nil
}

// IsFile reports whether path names a file, from stat alone: a 404, or a
// response with no <file> record, reports false; otherwise the first file
// record's type decides. It makes no du call.
func IsFile(ctx context.Context, cfg *ClientConfig, path string) (bool, error) {
	rec, err := Stat(ctx, cfg, path)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}

		return false, err
	}

	files := rec.Files()
	if len(files) == 0 {
		return false, nil
	}

	return files[0].Type == string(EntryFile), nil
}

// IsDirectory reports whether path names a directory, falling back to du
// for implicit directories that stat alone cannot confirm.
func IsDirectory(ctx context.Context, cfg *ClientConfig, path string) (bool, error) {
	rec, err := Stat(ctx, cfg, path)
	if err == nil {
		if _, ok := rec.Directory(); ok {
			return true, nil
		}

		files := rec.Files()
		if len(files) == 1 && files[0].Type == string(EntryDir) {
			return true, nil
		}
	} else if !IsNotFound(err) {
		return false, err
	}

	if _, err := Du(ctx, cfg, path); err != nil {
		if IsNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// UploadMissing uploads r to path only if path does not already exist
// (stat returns 404), per spec §4.6's uploadMissing shouldUpload gate. It
// reports whether the upload actually ran.
func UploadMissing(ctx context.Context, cfg *ClientConfig, path string, r io.Reader, size int64, onProgress func(int64)) (bool, error) {
	exists, err := FileExists(ctx, cfg, path)
	if err != nil {
		return false, err
	}

	if exists {
		return false, nil
	}

	if err := Upload(ctx, cfg, path, r, size, onProgress); err != nil {
		return false, err
	}

	return true, nil
}

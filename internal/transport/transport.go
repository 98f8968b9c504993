// Package transport implements the HTTP request construction shared by the
// buffered (XML) and streaming (upload/download) transports, per spec §4.4.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/akamai/netstorage-go/internal/signer"
)

func defaultClock() int64 { return time.Now().Unix() }

// Endpoint carries everything transport needs to address and sign a
// request, kept narrow so this package has no dependency on the root
// ClientConfig type.
type Endpoint struct {
	Host    string
	SSL     bool
	CPCode  string
	Signer  signer.Identity
	Clock   func() int64 // unix seconds, overridable in tests
}

func (e Endpoint) scheme() string {
	if e.SSL {
		return "https"
	}

	return "http"
}

func (e Endpoint) url(path string) string {
	p := path
	if e.CPCode != "" {
		prefix := "/" + e.CPCode
		if p != prefix && !hasPrefixSlash(p, prefix) {
			p = prefix + p
		}
	}

	return fmt.Sprintf("%s://%s%s", e.scheme(), e.Host, p)
}

func hasPrefixSlash(p, prefix string) bool {
	return len(p) >= len(prefix)+1 && p[:len(prefix)+1] == prefix+"/"
}

// BuildRequest constructs the signed *http.Request for verb against path
// with the given action params and HTTP method, merging extraHeaders on
// top of the three ACS auth headers.
func BuildRequest(ctx context.Context, e Endpoint, method, verb, path string, params map[string]string, extraHeaders map[string]string, body io.Reader) (*http.Request, error) {
	clock := e.Clock
	if clock == nil {
		clock = defaultClock
	}

	headers := signer.Sign(e.Signer, path, verb, params, clock(), signer.Nonce())

	req, err := http.NewRequestWithContext(ctx, method, e.url(path), body)
	if err != nil {
		return nil, errors.Wrap(err, "transport: building request")
	}

	req.Header.Set("X-Akamai-ACS-Action", headers.Action)
	req.Header.Set("X-Akamai-ACS-Auth-Data", headers.AuthData)
	req.Header.Set("X-Akamai-ACS-Auth-Sign", headers.AuthSign)

	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	return req, nil
}

// CountingReader wraps an io.Reader, invoking onProgress with the
// cumulative byte count after every successful Read, used to drive
// StreamTransport's progress callback on uploads.
type CountingReader struct {
	R          io.Reader
	onProgress func(int64)
	total      int64
}

// NewCountingReader wraps r. onProgress may be nil.
func NewCountingReader(r io.Reader, onProgress func(int64)) *CountingReader {
	return &CountingReader{R: r, onProgress: onProgress}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	if n > 0 {
		c.total += int64(n)
		if c.onProgress != nil {
			c.onProgress(c.total)
		}
	}

	return n, err
}

// CountingWriter is the download-side counterpart of CountingReader.
type CountingWriter struct {
	W          io.Writer
	onProgress func(int64)
	total      int64
}

// NewCountingWriter wraps w. onProgress may be nil.
func NewCountingWriter(w io.Writer, onProgress func(int64)) *CountingWriter {
	return &CountingWriter{W: w, onProgress: onProgress}
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	if n > 0 {
		c.total += int64(n)
		if c.onProgress != nil {
			c.onProgress(c.total)
		}
	}

	return n, err
}

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	pkgerrors "github.com/pkg/errors"

	"github.com/akamai/netstorage-go/internal/xmlrecord"
)

const bodySnippetLimit = 8 * 1024

// Buffered executes a small-bodied request and returns its parsed XML
// record, per spec §4.4: non-2xx status raises an *HTTPErrorInfo, otherwise
// the body is handed to xmlrecord.Parse.
type Buffered struct {
	Client *http.Client
}

// HTTPErrorInfo is the transport-layer shape of spec §3's Http(code, ...)
// error; the root package wraps it into netstorage.HTTPError.
type HTTPErrorInfo struct {
	Code        int
	Method      string
	URL         string
	BodySnippet string
}

func (e *HTTPErrorInfo) Error() string {
	return "transport: http " + e.Method + " " + e.URL
}

// Do sends req and decodes its response.
func (b *Buffered) Do(req *http.Request) (*xmlrecord.Record, error) {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyDoError(err)
	}

	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyDoError(err)
	}

	if resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > bodySnippetLimit {
			snippet = snippet[:bodySnippetLimit]
		}

		return nil, &HTTPErrorInfo{
			Code:        resp.StatusCode,
			Method:      req.Method,
			URL:         req.URL.String(),
			BodySnippet: string(snippet),
		}
	}

	rec, err := xmlrecord.Parse(body, resp.StatusCode)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "transport: parsing response body")
	}

	return rec, nil
}

// NetworkErrorInfo is the transport-layer shape of spec §3's Network(kind)
// error.
type NetworkErrorInfo struct {
	Kind  string
	Cause error
}

func (e *NetworkErrorInfo) Error() string { return "transport: network error (" + e.Kind + ")" }
func (e *NetworkErrorInfo) Unwrap() error { return e.Cause }

func classifyDoError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkErrorInfo{Kind: "aborted", Cause: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &NetworkErrorInfo{Kind: "dnsFailure", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &NetworkErrorInfo{Kind: "timeout", Cause: err}
	}

	if errors.Is(err, io.EOF) {
		return &NetworkErrorInfo{Kind: "reset", Cause: err}
	}

	return &NetworkErrorInfo{Kind: "reset", Cause: err}
}

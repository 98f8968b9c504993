package transport

import (
	"io"
	"net/http"
)

// Stream executes large-bodied PUT (upload) and GET (download) requests,
// per spec §4.4: the request/response body is piped through a counting
// wrapper that drives onProgress, and non-2xx responses are turned into an
// *HTTPErrorInfo carrying at most the first 8KiB of the body.
type Stream struct {
	Client *http.Client
}

func (s *Stream) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}

	return http.DefaultClient
}

// Upload sends req (already built with a body reader wrapping the caller's
// reader via NewCountingReader) and validates the response status.
func (s *Stream) Upload(req *http.Request) error {
	resp, err := s.client().Do(req)
	if err != nil {
		return classifyDoError(err)
	}

	defer resp.Body.Close() //nolint:errcheck

	return checkStreamStatus(req, resp)
}

// Download sends req and pipes the response body into w, invoking
// onProgress as bytes arrive.
func (s *Stream) Download(req *http.Request, w io.Writer, onProgress func(int64)) error {
	resp, err := s.client().Do(req)
	if err != nil {
		return classifyDoError(err)
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return checkStreamStatus(req, resp)
	}

	cw := NewCountingWriter(w, onProgress)

	if _, err := io.Copy(cw, resp.Body); err != nil {
		return classifyDoError(err)
	}

	return nil
}

func checkStreamStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}

	limited := io.LimitReader(resp.Body, bodySnippetLimit)
	snippet, _ := io.ReadAll(limited)

	return &HTTPErrorInfo{
		Code:        resp.StatusCode,
		Method:      req.Method,
		URL:         req.URL.String(),
		BodySnippet: string(snippet),
	}
}

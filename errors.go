package netstorage

import (
	"errors"
	"fmt"
)

// ConfigValidationError is raised when a ClientConfig is built with a
// missing or malformed required field. It is always fatal at construction
// time.
type ConfigValidationError struct {
	Field string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("netstorage: invalid configuration field %q", e.Field)
}

// HTTPError is raised whenever the server responds with a status code
// outside the 2xx range.
type HTTPError struct {
	Code        int
	Method      string
	URL         string
	BodySnippet string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("netstorage: %s %s: http %d", e.Method, e.URL, e.Code)
}

// NetworkErrorKind enumerates the transient transport failures the retry
// driver knows how to classify.
type NetworkErrorKind int

const (
	// NetworkTimeout means the request did not complete within its deadline.
	NetworkTimeout NetworkErrorKind = iota
	// NetworkReset means the connection was reset by the peer.
	NetworkReset
	// NetworkDNSFailure means name resolution failed.
	NetworkDNSFailure
	// NetworkAborted means the request was cancelled via context or explicit abort signal.
	NetworkAborted
)

func (k NetworkErrorKind) String() string {
	switch k {
	case NetworkTimeout:
		return "timeout"
	case NetworkReset:
		return "reset"
	case NetworkDNSFailure:
		return "dnsFailure"
	case NetworkAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// NetworkError wraps a lower-level transport failure with a classified kind.
type NetworkError struct {
	Kind  NetworkErrorKind
	Cause error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("netstorage: network error (%s): %v", e.Kind, e.Cause)
	}

	return fmt.Sprintf("netstorage: network error (%s)", e.Kind)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// NotADateError is raised by Mtime when the supplied value is not a valid
// Unix timestamp.
type NotADateError struct {
	Value string
}

func (e *NotADateError) Error() string {
	return fmt.Sprintf("netstorage: not a valid date: %q", e.Value)
}

// InvalidHeaderValueError is raised when a caller-supplied value destined
// for an ACS request header (a rename destination or symlink target)
// contains control characters or CR/LF, which would otherwise corrupt the
// header or be rejected deep inside net/http with a less specific error.
type InvalidHeaderValueError struct {
	Field string
	Value string
}

func (e *InvalidHeaderValueError) Error() string {
	return fmt.Sprintf("netstorage: invalid value for %s: %q", e.Field, e.Value)
}

// InternalError wraps any other unexpected failure.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("netstorage: internal error: %s: %v", e.Message, e.Cause)
	}

	return fmt.Sprintf("netstorage: internal error: %s", e.Message)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is an HTTPError carrying a 404 status.
func IsNotFound(err error) bool {
	var he *HTTPError

	return errors.As(err, &he) && he.Code == 404
}

// IsRetryable implements the default retry classification from spec §4.3:
// transient network kinds and a fixed set of 5xx/429 HTTP status codes are
// retryable, everything else is not.
func IsRetryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		switch ne.Kind {
		case NetworkTimeout, NetworkReset, NetworkDNSFailure:
			return true
		}

		// NetworkAborted means the caller's own context was cancelled or hit
		// its deadline: retrying would just spend attempts re-discovering
		// that the context is still done, per spec §7.
		return false
	}

	var he *HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
	}

	return false
}

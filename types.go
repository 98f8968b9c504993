package netstorage

import (
	"strconv"
	"strings"
	"time"

	"github.com/akamai/netstorage-go/internal/xmlrecord"
)

// EntryType enumerates the kinds of object NetStorage can report in a
// directory listing, per spec §3.
type EntryType string

const (
	// EntryFile is a plain file.
	EntryFile EntryType = "file"
	// EntryDir is a directory (explicit or implicit).
	EntryDir EntryType = "dir"
	// EntrySymlink is a symbolic link.
	EntrySymlink EntryType = "symlink"
)

// RemoteEntry is one directory-listing element returned by stat/dir, per
// spec §3. Size and Mtime are kept as the raw strings NetStorage returns;
// callers parse them on demand via Size()/Mtime() or the xmlrecord helpers.
type RemoteEntry struct {
	Name      string
	Type      EntryType
	SizeRaw   string
	MtimeRaw  string
	MD5       string
	Target    string
	Implicit  string
}

// Size parses SizeRaw, defaulting to 0 when absent or malformed.
func (e RemoteEntry) Size() int64 {
	n, err := strconv.ParseInt(e.SizeRaw, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// Mtime parses MtimeRaw as Unix seconds, returning the zero time when
// absent or malformed.
func (e RemoteEntry) Mtime() time.Time {
	n, err := strconv.ParseInt(e.MtimeRaw, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(n, 0).UTC()
}

// IsImplicit reports whether the directory entry is an implicit directory
// (one that exists only because it has descendants, never explicitly
// mkdir'd), per the implicit attribute NetStorage returns on dir listings
// (kept in the Implicit field).
func (e RemoteEntry) IsImplicit() bool {
	return e.Implicit == "true"
}

// RemoteEntryFromFileRecord converts an xmlrecord.FileRecord (one <file>
// child of a dir/stat listing) into a RemoteEntry.
func RemoteEntryFromFileRecord(f xmlrecord.FileRecord) RemoteEntry {
	return RemoteEntry{
		Name:     f.Name,
		Type:     EntryType(f.Type),
		SizeRaw:  f.Size,
		MtimeRaw: f.MTime,
		MD5:      f.MD5,
		Target:   f.Target,
		Implicit: f.Implicit,
	}
}

// WalkEntry is one record produced by a RemoteWalker, per spec §3.
type WalkEntry struct {
	File         RemoteEntry
	Path         string
	Parent       string
	RelativePath string
	Depth        uint32
}

// JoinRemotePath joins parent and name into a collapsed, slash-separated
// absolute path per spec §3's WalkEntry invariant: path = parent == "/" ?
// "/"+name : parent+"/"+name.
func JoinRemotePath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}

	return strings.TrimRight(parent, "/") + "/" + name
}

// DepthBucket groups WalkEntry values produced at the same depth, in the
// order the walker yielded them (server order preserved), per spec §3.
type DepthBucket struct {
	Depth   uint32
	Entries []WalkEntry
}

// RetryConfig mirrors spec §3's RetryConfig record; DefaultRetryConfig
// returns its defaults. No operation in this package accepts a
// RetryConfig: every verb runs with the fixed settings built by
// retryConfig in operations.go, which equal DefaultRetryConfig's values.
type RetryConfig struct {
	Retries       int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Jitter        bool
	Classify      func(error) bool
	BeforeAttempt func() error
	OnRetry       func(err error, attempt int, delay time.Duration)
}

// DefaultRetryConfig returns the spec §3/§4.3 defaults: 3 retries, 300ms
// base delay, 2000ms max delay, jitter enabled, IsRetryable classification.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Retries:   3,
		BaseDelay: 300 * time.Millisecond,
		MaxDelay:  2000 * time.Millisecond,
		Jitter:    true,
		Classify:  IsRetryable,
	}
}

// Package nssync implements bidirectional directory synchronization with
// pluggable compare strategies, conflict resolution, and extraneous-path
// deletion, per spec §4.10.
package nssync

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/internal/workqueue"
	"github.com/akamai/netstorage-go/localfs"
	"github.com/akamai/netstorage-go/walk"
)

// Direction constrains which way transfers may run.
type Direction int

const (
	DirectionUpload Direction = iota
	DirectionDownload
	DirectionBoth
)

// CompareStrategy decides whether two sides of a path are in sync.
type CompareStrategy int

const (
	CompareExists CompareStrategy = iota
	CompareSize
	CompareMtime
	CompareChecksum
)

// ConflictResolution picks a winner when both sides have independently
// valid transfer candidates for the same path.
type ConflictResolution int

const (
	PreferLocal ConflictResolution = iota
	PreferRemote
	Manual
)

// RuleAction is the outcome a conflict rule maps a path to.
type RuleAction int

const (
	RuleUpload RuleAction = iota
	RuleDownload
	RuleSkip
)

// DeleteExtraneous selects which side's extraneous paths (absent on the
// other side) get removed during sync.
type DeleteExtraneous int

const (
	DeleteNone DeleteExtraneous = iota
	DeleteLocal
	DeleteRemote
	DeleteBoth
)

// SkipReason enumerates why a path was not transferred.
type SkipReason string

const (
	ReasonInSync         SkipReason = "inSync"
	ReasonConflictManual SkipReason = "conflictManual"
	ReasonConflictRule   SkipReason = "conflictRule"
	ReasonDryRun         SkipReason = "dryRun"
	ReasonError          SkipReason = "error"
)

// TransferEvent describes one successful upload or download during sync.
type TransferEvent struct {
	RelativePath string
	Direction    Direction
	Bytes        int64
}

// SkipEvent describes one path that was not transferred or not deleted.
type SkipEvent struct {
	RelativePath string
	Reason       SkipReason
	Err          error
}

// ConflictRule maps a glob pattern (matched against relative path) to a
// fixed action; rules are evaluated in slice order and the first match
// wins, per spec §4.10 step 4.
type ConflictRule struct {
	Pattern string
	Action  RuleAction
}

// Options configures SyncDirectory.
type Options struct {
	Direction          Direction
	CompareStrategy    CompareStrategy
	ConflictResolution ConflictResolution
	ConflictRules      []ConflictRule
	DeleteExtraneous   DeleteExtraneous
	DryRun             bool
	MaxConcurrency     int
	Ignore             []string

	OnTransfer func(TransferEvent)
	OnSkip     func(SkipEvent)
}

const defaultMaxConcurrency = 5

func (o Options) concurrency() int {
	if o.MaxConcurrency > 0 {
		return o.MaxConcurrency
	}

	return defaultMaxConcurrency
}

// Result summarizes one SyncDirectory run.
type Result struct {
	Transferred []TransferEvent
	Skipped     []SkipEvent
}

func (r *Result) transfer(ev TransferEvent, cb func(TransferEvent)) {
	r.Transferred = append(r.Transferred, ev)
	if cb != nil {
		cb(ev)
	}
}

func (r *Result) skip(ev SkipEvent, cb func(SkipEvent)) {
	r.Skipped = append(r.Skipped, ev)
	if cb != nil {
		cb(ev)
	}
}

type localIndexEntry struct {
	localfs.Entry
	size  int64
	mtime int64 // unix milliseconds
}

// SyncDirectory reconciles localPath and remotePath per opts, per
// spec §4.10's five-step pipeline.
func SyncDirectory(ctx context.Context, cfg *netstorage.ClientConfig, localPath, remotePath string, opts Options) (*Result, error) {
	var (
		localFiles  map[string]localIndexEntry
		localDirs   map[string]bool
		remoteFiles map[string]netstorage.WalkEntry
		remoteDirs  map[string]bool
	)

	// The local scan and the remote walk touch disjoint resources (the
	// filesystem and the NetStorage API), so they run concurrently.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		localFiles, localDirs, err = buildLocalIndex(localPath, opts.Ignore)
		return err
	})

	g.Go(func() error {
		var err error
		remoteFiles, remoteDirs, err = buildRemoteIndex(gctx, cfg, remotePath)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rules, err := compileRules(opts.ConflictRules)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	// Deletions run before transfers, unconditionally: a path removed for
	// being extraneous on one side must not then be recreated by a
	// transfer decided from the pre-deletion index.
	deleteExtraneous(ctx, cfg, localPath, remotePath, opts, localFiles, localDirs, remoteFiles, remoteDirs, result)

	paths := unionKeys(localFiles, remoteFiles)

	type job struct {
		rel    string
		action RuleAction
		reason SkipReason
	}

	jobs := make([]job, 0, len(paths))

	for _, rel := range paths {
		action, reason := decide(rel, localFiles, remoteFiles, opts, rules)
		jobs = append(jobs, job{rel: rel, action: action, reason: reason})
	}

	q := workqueue.NewQueue()

	var mu sync.Mutex

	for _, j := range jobs {
		j := j

		q.EnqueueBack(ctx, func() error {
			switch j.action {
			case RuleSkip:
				mu.Lock()
				result.skip(SkipEvent{RelativePath: j.rel, Reason: j.reason}, opts.OnSkip)
				mu.Unlock()

				return nil
			case RuleUpload:
				runTransfer(ctx, cfg, localPath, remotePath, j.rel, DirectionUpload, opts, result, &mu)
			case RuleDownload:
				runTransfer(ctx, cfg, localPath, remotePath, j.rel, DirectionDownload, opts, result, &mu)
			}

			return nil
		})
	}

	if err := q.Process(ctx, opts.concurrency()); err != nil {
		return result, err
	}

	return result, nil
}

func runTransfer(ctx context.Context, cfg *netstorage.ClientConfig, localPath, remotePath, rel string, dir Direction, opts Options, result *Result, mu *sync.Mutex) {
	if opts.DryRun {
		mu.Lock()
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonDryRun}, opts.OnSkip)
		mu.Unlock()

		return
	}

	localFull := filepath.Join(localPath, filepath.FromSlash(rel))
	remoteFull := path.Join(remotePath, rel)

	var (
		size int64
		err  error
	)

	switch dir {
	case DirectionUpload:
		size, err = uploadOne(ctx, cfg, localFull, remoteFull)
	case DirectionDownload:
		size, err = downloadOne(ctx, cfg, remoteFull, localFull)
	}

	mu.Lock()
	defer mu.Unlock()

	if err != nil {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonError, Err: err}, opts.OnSkip)
		return
	}

	result.transfer(TransferEvent{RelativePath: rel, Direction: dir, Bytes: size}, opts.OnTransfer)
}

func uploadOne(ctx context.Context, cfg *netstorage.ClientConfig, localFull, remoteFull string) (int64, error) {
	f, err := os.Open(localFull)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if err := netstorage.Upload(ctx, cfg, remoteFull, f, info.Size(), nil); err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func downloadOne(ctx context.Context, cfg *netstorage.ClientConfig, remoteFull, localFull string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(localFull), 0o755); err != nil {
		return 0, err
	}

	f, err := os.Create(localFull)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck

	var size int64

	if err := netstorage.Download(ctx, cfg, remoteFull, f, func(n int64) { size = n }); err != nil {
		return 0, err
	}

	return size, nil
}

func buildLocalIndex(localPath string, ignore []string) (map[string]localIndexEntry, map[string]bool, error) {
	entries, err := localfs.Walk(localPath, localfs.Options{Ignore: ignore, IncludeDirs: true})
	if err != nil {
		return nil, nil, err
	}

	files := map[string]localIndexEntry{}
	dirs := map[string]bool{}

	for _, e := range entries {
		if e.IsDirectory {
			dirs[e.RelativePath] = true
			continue
		}

		info, err := os.Stat(e.LocalPath)
		if err != nil {
			return nil, nil, err
		}

		files[e.RelativePath] = localIndexEntry{
			Entry: e,
			size:  info.Size(),
			mtime: info.ModTime().UnixMilli(),
		}
	}

	return files, dirs, nil
}

func buildRemoteIndex(ctx context.Context, cfg *netstorage.ClientConfig, remotePath string) (map[string]netstorage.WalkEntry, map[string]bool, error) {
	w := walk.New(ctx, cfg, remotePath, walk.Options{})

	files := map[string]netstorage.WalkEntry{}
	dirs := map[string]bool{}

	for {
		entry, ok, err := w.Next()
		if err != nil {
			return nil, nil, err
		}

		if !ok {
			break
		}

		if entry.File.Type == netstorage.EntryDir {
			dirs[entry.RelativePath] = true
			continue
		}

		files[entry.RelativePath] = entry
	}

	return files, dirs, nil
}

func unionKeys(a map[string]localIndexEntry, b map[string]netstorage.WalkEntry) []string {
	seen := map[string]bool{}

	var out []string

	for k := range a {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	for k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	return out
}

type compiledRule struct {
	g      glob.Glob
	action RuleAction
}

func compileRules(rules []ConflictRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))

	for _, r := range rules {
		g, err := glob.Compile(r.Pattern, '/')
		if err != nil {
			return nil, err
		}

		out = append(out, compiledRule{g: g, action: r.Action})
	}

	return out, nil
}

func matchRule(rules []compiledRule, rel string) (RuleAction, bool) {
	for _, r := range rules {
		if r.g.Match(rel) {
			return r.action, true
		}
	}

	return 0, false
}

// decide applies compare strategy + conflict resolution to produce the
// action (and, if skipped, why) for one relative path, per spec §4.10
// steps 3-4.
func decide(rel string, localFiles map[string]localIndexEntry, remoteFiles map[string]netstorage.WalkEntry, opts Options, rules []compiledRule) (RuleAction, SkipReason) {
	if action, ok := matchRule(rules, rel); ok {
		if action == RuleSkip {
			return RuleSkip, ReasonConflictRule
		}

		return action, ""
	}

	local, hasLocal := localFiles[rel]
	remote, hasRemote := remoteFiles[rel]

	needsUpload, needsDownload := compareCandidates(local, hasLocal, remote, hasRemote, opts.CompareStrategy)

	needsUpload = needsUpload && directionAllows(opts.Direction, DirectionUpload)
	needsDownload = needsDownload && directionAllows(opts.Direction, DirectionDownload)

	switch {
	case needsUpload && needsDownload:
		switch opts.ConflictResolution {
		case PreferLocal:
			return RuleUpload, ""
		case PreferRemote:
			return RuleDownload, ""
		default:
			return RuleSkip, ReasonConflictManual
		}
	case needsUpload:
		return RuleUpload, ""
	case needsDownload:
		return RuleDownload, ""
	default:
		return RuleSkip, ReasonInSync
	}
}

func directionAllows(d, candidate Direction) bool {
	return d == DirectionBoth || d == candidate
}

// compareCandidates reports whether path rel needs an upload and/or a
// download, per spec §4.10 step 3's four strategies.
func compareCandidates(local localIndexEntry, hasLocal bool, remote netstorage.WalkEntry, hasRemote bool, strategy CompareStrategy) (needsUpload, needsDownload bool) {
	if !hasRemote {
		return hasLocal, false
	}

	if !hasLocal {
		return false, hasRemote
	}

	switch strategy {
	case CompareSize:
		if local.size != remote.File.Size() {
			return true, true
		}

		return false, false
	case CompareMtime:
		remoteMs := remote.File.Mtime().UnixMilli()

		switch {
		case local.mtime > remoteMs:
			return true, false
		case remoteMs > local.mtime:
			return false, true
		default:
			return false, false
		}
	case CompareChecksum:
		sum, err := md5File(local.LocalPath)
		if err != nil || sum != remote.File.MD5 || remote.File.MD5 == "" {
			return true, true
		}

		return false, false
	default: // CompareExists
		return false, false
	}
}

func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	h := md5.New() //nolint:gosec

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// deleteExtraneous removes paths present on one side but absent on the
// other, per opts.DeleteExtraneous, and drops every path it actually
// removed from the corresponding index so the later transfer pass never
// reconsiders (and recreates) it.
func deleteExtraneous(ctx context.Context, cfg *netstorage.ClientConfig, localPath, remotePath string, opts Options, localFiles map[string]localIndexEntry, localDirs map[string]bool, remoteFiles map[string]netstorage.WalkEntry, remoteDirs map[string]bool, result *Result) {
	if opts.DeleteExtraneous == DeleteLocal || opts.DeleteExtraneous == DeleteBoth {
		for rel := range localFiles {
			if _, ok := remoteFiles[rel]; ok {
				continue
			}

			if deleteLocalPath(localPath, rel, opts, result) {
				delete(localFiles, rel)
			}
		}

		// Directories are only extraneous once their files are gone; walk
		// deepest-first so a parent's removal is never attempted while a
		// child directory still occupies it.
		for _, rel := range sortedDepthsDesc(localDirs) {
			if _, ok := remoteDirs[rel]; ok {
				continue
			}

			if deleteLocalDir(localPath, rel, opts, result) {
				delete(localDirs, rel)
			}
		}
	}

	if opts.DeleteExtraneous == DeleteRemote || opts.DeleteExtraneous == DeleteBoth {
		for rel := range remoteFiles {
			if _, ok := localFiles[rel]; ok {
				continue
			}

			if deleteRemotePath(ctx, cfg, remotePath, rel, opts, result) {
				delete(remoteFiles, rel)
			}
		}

		for _, rel := range sortedDepthsDesc(remoteDirs) {
			if _, ok := localDirs[rel]; ok {
				continue
			}

			if deleteRemoteDir(ctx, cfg, remotePath, rel, opts, result) {
				delete(remoteDirs, rel)
			}
		}
	}
}

// sortedDepthsDesc returns the keys of dirs ordered by descending path
// depth (most slash-separated segments first), so deletion always reaches
// a directory's children before the directory itself.
func sortedDepthsDesc(dirs map[string]bool) []string {
	rels := make([]string, 0, len(dirs))
	for rel := range dirs {
		rels = append(rels, rel)
	}

	sort.Slice(rels, func(i, j int) bool {
		return strings.Count(rels[i], "/") > strings.Count(rels[j], "/")
	})

	return rels
}

// deleteLocalDir reports whether rel was actually removed (false on
// dry-run, error, or a non-empty directory left behind by a skipped file).
func deleteLocalDir(localPath, rel string, opts Options, result *Result) bool {
	if opts.DryRun {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonDryRun}, opts.OnSkip)
		return false
	}

	if err := os.Remove(filepath.Join(localPath, filepath.FromSlash(rel))); err != nil {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonError, Err: err}, opts.OnSkip)
		return false
	}

	return true
}

// deleteRemoteDir reports whether rel was actually removed.
func deleteRemoteDir(ctx context.Context, cfg *netstorage.ClientConfig, remotePath, rel string, opts Options, result *Result) bool {
	if opts.DryRun {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonDryRun}, opts.OnSkip)
		return false
	}

	if err := netstorage.Rmdir(ctx, cfg, path.Join(remotePath, rel)); err != nil {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonError, Err: err}, opts.OnSkip)
		return false
	}

	return true
}

// deleteLocalPath reports whether rel was actually removed (false on
// dry-run or error).
func deleteLocalPath(localPath, rel string, opts Options, result *Result) bool {
	if opts.DryRun {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonDryRun}, opts.OnSkip)
		return false
	}

	if err := os.Remove(filepath.Join(localPath, filepath.FromSlash(rel))); err != nil {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonError, Err: err}, opts.OnSkip)
		return false
	}

	return true
}

// deleteRemotePath reports whether rel was actually removed (false on
// dry-run or error).
func deleteRemotePath(ctx context.Context, cfg *netstorage.ClientConfig, remotePath, rel string, opts Options, result *Result) bool {
	if opts.DryRun {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonDryRun}, opts.OnSkip)
		return false
	}

	if err := netstorage.Rm(ctx, cfg, path.Join(remotePath, rel)); err != nil {
		result.skip(SkipEvent{RelativePath: rel, Reason: ReasonError, Err: err}, opts.OnSkip)
		return false
	}

	return true
}

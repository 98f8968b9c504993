// Package walk implements the lazy, depth-first remote directory
// traversal described in spec §4.7.
package walk

import (
	"context"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/internal/xmlrecord"
)

// Options configures a Walker.
type Options struct {
	// MaxDepth bounds recursion when HasMaxDepth is set: directories at
	// depth MaxDepth or deeper are yielded but not listed. It is ignored
	// when HasMaxDepth is false. Depth 0 is the immediate children of root.
	MaxDepth uint32
	// HasMaxDepth distinguishes "unbounded" from an explicit MaxDepth=0
	// (root's children only).
	HasMaxDepth bool
	// ShouldInclude filters entries; nil includes everything.
	ShouldInclude func(entry netstorage.WalkEntry) bool
	// AddSyntheticRoot, when true, yields a synthetic root entry before
	// any children if the root's dir response describes a directory.
	AddSyntheticRoot bool
}

const syntheticRootName = "__synthetic_root__"

type frameState int

const (
	stateUnvisited frameState = iota
	stateListing
	stateListed
	statePruned
)

// frame tracks one pending directory: its WalkEntry (for relative path
// bookkeeping), the depth its own children are listed at, and once
// listed, the children left to yield.
type frame struct {
	entry      netstorage.WalkEntry
	childDepth uint32
	state      frameState
	children   []netstorage.WalkEntry
	next       int
}

// Walker is a pull iterator over a remote subtree, backed by an explicit
// stack of pending directories rather than a goroutine+channel producer:
// the walk has no concurrency of its own, and an explicit stack never
// leaks a goroutine when a caller abandons iteration early.
type Walker struct {
	ctx  context.Context
	cfg  *netstorage.ClientConfig
	opts Options

	stack       []*frame
	emittedRoot bool
	rootPath    string
}

// New builds a Walker rooted at path. No network calls happen until the
// first call to Next.
func New(ctx context.Context, cfg *netstorage.ClientConfig, path string, opts Options) *Walker {
	root := trimTrailingSlashes(path)

	return &Walker{
		ctx:      ctx,
		cfg:      cfg,
		opts:     opts,
		rootPath: root,
	}
}

func trimTrailingSlashes(p string) string {
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}

	return p
}

// Next returns the next WalkEntry in ancestor-before-descendant, server
// order, or ok=false once the subtree is exhausted. A per-directory
// listing failure is logged at debug and prunes that subtree rather than
// aborting the walk, per spec §4.7.
func (w *Walker) Next() (netstorage.WalkEntry, bool, error) {
	if !w.emittedRoot {
		w.emittedRoot = true

		rootFrame := &frame{
			entry: netstorage.WalkEntry{
				Path:         w.rootPath,
				RelativePath: "",
				Depth:        0,
			},
			// Root itself is never yielded (outside the synthetic-root
			// case), so its children are the first listing level: depth 0,
			// per spec §3's "0 = immediate children of root".
			childDepth: 0,
		}

		w.stack = append(w.stack, rootFrame)

		if w.opts.AddSyntheticRoot {
			rec, err := netstorage.Dir(w.ctx, w.cfg, w.rootPath)
			if err == nil {
				// A successful dir() response confirms root names a
				// directory, per spec §4.7's "root dir response includes
				// a directory field" condition.
				synthetic := netstorage.WalkEntry{
					File: netstorage.RemoteEntry{
						Name: syntheticRootName,
						Type: netstorage.EntryDir,
					},
					Path:         w.rootPath,
					Parent:       "",
					RelativePath: "",
					Depth:        0,
				}

				rootFrame.children = childrenFromRecord(rec, w.rootPath, "", 0)
				rootFrame.state = stateListed

				return synthetic, true, nil
			}

			if w.cfg.Logger != nil {
				w.cfg.Logger.Debug("pruning synthetic root after dir failure", "path", w.rootPath, "error", err)
			}

			rootFrame.state = statePruned
		}
	}

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]

		switch top.state {
		case stateUnvisited:
			top.state = stateListing

			rec, err := netstorage.Dir(w.ctx, w.cfg, top.entry.Path)
			if err != nil {
				if w.cfg.Logger != nil {
					w.cfg.Logger.Debug("pruning subtree after dir failure", "path", top.entry.Path, "error", err)
				}

				top.state = statePruned

				continue
			}

			top.children = childrenFromRecord(rec, top.entry.Path, top.entry.RelativePath, top.childDepth)
			top.state = stateListed

			continue

		case stateListing, statePruned:
			w.stack = w.stack[:len(w.stack)-1]
			continue

		case stateListed:
			if top.next >= len(top.children) {
				w.stack = w.stack[:len(w.stack)-1]
				continue
			}

			child := top.children[top.next]
			top.next++

			include := true
			if w.opts.ShouldInclude != nil {
				include = w.opts.ShouldInclude(child)
			}

			descend := child.File.Type == netstorage.EntryDir && w.withinDepth(child.Depth)
			if descend {
				w.stack = append(w.stack, &frame{entry: child, childDepth: child.Depth + 1})
			}

			if include {
				return child, true, nil
			}
		}
	}

	return netstorage.WalkEntry{}, false, nil
}

func (w *Walker) withinDepth(childDepth uint32) bool {
	if !w.opts.HasMaxDepth {
		return true
	}

	return childDepth < w.opts.MaxDepth
}

func childrenFromRecord(rec *xmlrecord.Record, parentPath, parentRelative string, depth uint32) []netstorage.WalkEntry {
	files := rec.Files()

	out := make([]netstorage.WalkEntry, 0, len(files))

	for _, f := range files {
		entry := netstorage.RemoteEntryFromFileRecord(f)
		path := netstorage.JoinRemotePath(parentPath, entry.Name)

		relative := entry.Name
		if parentRelative != "" {
			relative = parentRelative + "/" + entry.Name
		}

		out = append(out, netstorage.WalkEntry{
			File:         entry,
			Path:         path,
			Parent:       parentPath,
			RelativePath: relative,
			Depth:        depth,
		})
	}

	return out
}

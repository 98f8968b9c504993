// Package localfs implements the recursive local filesystem traversal
// described in spec §4.11, with ignore-glob pruning and symlink policy.
package localfs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Entry is one record yielded by Walk: a local path, its path relative to
// root, and whether it names a directory.
type Entry struct {
	LocalPath    string
	RelativePath string
	IsDirectory  bool
}

// Options configures Walk.
type Options struct {
	// Ignore is a set of glob patterns evaluated against RelativePath; any
	// match prunes the entry, and for directories their whole subtree.
	Ignore []string
	// FollowSymlinks controls whether a symlinked directory is descended
	// into; default false.
	FollowSymlinks bool
	// IncludeDirs, when true, emits directory records in addition to
	// files.
	IncludeDirs bool
	// DotIgnoreFiles names dotfiles (e.g. ".netstorageignore") that, when
	// found in a directory, contribute additional glob patterns scoped to
	// that directory and its descendants — supplementing the spec's
	// static Ignore list with the original source's per-directory ignore
	// file convention.
	DotIgnoreFiles []string
}

// Walk performs a depth-first traversal of root and returns every entry in
// ancestor-before-descendant order.
func Walk(root string, opts Options) ([]Entry, error) {
	compiled, err := compilePatterns(opts.Ignore)
	if err != nil {
		return nil, errors.Wrap(err, "localfs: compiling ignore patterns")
	}

	var out []Entry

	err = walkDir(root, "", compiled, opts, &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))

	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "localfs: invalid ignore pattern %q", p)
		}

		compiled = append(compiled, g)
	}

	return compiled, nil
}

func matches(patterns []glob.Glob, relativePath string) bool {
	for _, g := range patterns {
		if g.Match(relativePath) {
			return true
		}
	}

	return false
}

func walkDir(localPath, relativePath string, patterns []glob.Glob, opts Options, out *[]Entry) error {
	if fromDotIgnoreFiles, err := loadDotIgnoreFiles(localPath, opts.DotIgnoreFiles); err != nil {
		return err
	} else if len(fromDotIgnoreFiles) > 0 {
		patterns = append(append([]glob.Glob{}, patterns...), fromDotIgnoreFiles...)
	}

	infos, err := os.ReadDir(localPath)
	if err != nil {
		return errors.Wrapf(err, "localfs: reading directory %q", localPath)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, de := range infos {
		childRelative := de.Name()
		if relativePath != "" {
			childRelative = relativePath + "/" + de.Name()
		}

		if matches(patterns, childRelative) {
			continue
		}

		childLocal := filepath.Join(localPath, de.Name())

		isDir, err := isDirectoryEntry(childLocal, de, opts.FollowSymlinks)
		if err != nil {
			return err
		}

		if isDir {
			if opts.IncludeDirs {
				*out = append(*out, Entry{LocalPath: childLocal, RelativePath: childRelative, IsDirectory: true})
			}

			if err := walkDir(childLocal, childRelative, patterns, opts, out); err != nil {
				return err
			}

			continue
		}

		*out = append(*out, Entry{LocalPath: childLocal, RelativePath: childRelative, IsDirectory: false})
	}

	return nil
}

func isDirectoryEntry(path string, de os.DirEntry, followSymlinks bool) (bool, error) {
	if de.Type()&os.ModeSymlink == 0 {
		return de.IsDir(), nil
	}

	if !followSymlinks {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, errors.Wrapf(err, "localfs: resolving symlink %q", path)
	}

	return info.IsDir(), nil
}

func loadDotIgnoreFiles(dir string, names []string) ([]glob.Glob, error) {
	var patterns []string

	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, errors.Wrapf(err, "localfs: reading ignore file %q", name)
		}

		for _, line := range splitLines(string(body)) {
			if line == "" || line[0] == '#' {
				continue
			}

			patterns = append(patterns, line)
		}
	}

	return compilePatterns(patterns)
}

func splitLines(s string) []string {
	var lines []string

	start := 0

	for i, r := range s {
		if r == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}

			lines = append(lines, line)
			start = i + 1
		}
	}

	if start < len(s) {
		lines = append(lines, s[start:])
	}

	return lines
}

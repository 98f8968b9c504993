// Package treeview renders depth-bucketed remote walk output as an
// indented tree, per spec §4.8.
package treeview

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/adjacency"
)

// Column identifies one optional, parenthesized, pipe-separated column
// appended after an entry's name, per spec §4.8.
type Column int

const (
	// ColumnSize renders the aggregated directory size or file size.
	ColumnSize Column = iota
	// ColumnMtime renders the entry's modification time.
	ColumnMtime
	// ColumnMD5 renders a file's MD5 checksum.
	ColumnMD5
	// ColumnSymlinkTarget renders a symlink's target.
	ColumnSymlinkTarget
	// ColumnRelativePath renders the entry's path relative to the walk root.
	ColumnRelativePath
	// ColumnAbsolutePath renders the entry's absolute remote path.
	ColumnAbsolutePath
)

// Options configures Render.
type Options struct {
	Columns  []Column
	Language language.Tag
}

type node struct {
	entry    netstorage.WalkEntry
	children []*node
}

// Render draws a tree from adjacency.Result, depth-first, directories
// before files at each level, then case-insensitive locale-aware name
// order, per spec §4.8.
func Render(result adjacency.Result, opts Options) string {
	sizes := result.AggregateDirectorySizes()

	roots := buildForest(result)
	sortChildren(roots, opts.Language)

	var b strings.Builder

	for i, r := range roots {
		last := i == len(roots)-1
		writeNode(&b, r, "", last, sizes, opts)
	}

	return b.String()
}

func buildForest(result adjacency.Result) []*node {
	byPath := map[string]*node{}

	var roots []*node

	for _, bucket := range result.DepthBuckets {
		for _, e := range bucket.Entries {
			n := &node{entry: e}
			byPath[e.Path] = n

			if parent, ok := byPath[e.Parent]; ok {
				parent.children = append(parent.children, n)
			} else {
				roots = append(roots, n)
			}
		}
	}

	return roots
}

func sortChildren(nodes []*node, lang language.Tag) {
	if lang == (language.Tag{}) {
		lang = language.Und
	}

	col := collate.New(lang, collate.IgnoreCase)

	sort.SliceStable(nodes, func(i, j int) bool {
		a, bb := nodes[i].entry, nodes[j].entry

		aDir := a.File.Type == netstorage.EntryDir
		bDir := bb.File.Type == netstorage.EntryDir

		if aDir != bDir {
			return aDir
		}

		return col.CompareString(a.File.Name, bb.File.Name) < 0
	})

	for _, n := range nodes {
		sortChildren(n.children, lang)
	}
}

func writeNode(b *strings.Builder, n *node, prefix string, last bool, sizes map[string]int64, opts Options) {
	branch := "├── "
	if last {
		branch = "└── "
	}

	b.WriteString(prefix)
	b.WriteString(branch)
	b.WriteString(n.entry.File.Name)
	b.WriteString(renderColumns(n.entry, sizes, opts.Columns))
	b.WriteString("\n")

	childPrefix := prefix + "│   "
	if last {
		childPrefix = prefix + "    "
	}

	for i, c := range n.children {
		writeNode(b, c, childPrefix, i == len(n.children)-1, sizes, opts)
	}
}

func renderColumns(e netstorage.WalkEntry, sizes map[string]int64, cols []Column) string {
	if len(cols) == 0 {
		return ""
	}

	parts := make([]string, 0, len(cols))

	for _, c := range cols {
		switch c {
		case ColumnSize:
			if e.File.Type == netstorage.EntryDir {
				parts = append(parts, fmt.Sprintf("%d", sizes[e.Path]))
			} else {
				parts = append(parts, fmt.Sprintf("%d", e.File.Size()))
			}
		case ColumnMtime:
			parts = append(parts, e.File.MtimeRaw)
		case ColumnMD5:
			parts = append(parts, e.File.MD5)
		case ColumnSymlinkTarget:
			parts = append(parts, e.File.Target)
		case ColumnRelativePath:
			parts = append(parts, e.RelativePath)
		case ColumnAbsolutePath:
			parts = append(parts, e.Path)
		}
	}

	return " (" + strings.Join(parts, "|") + ")"
}

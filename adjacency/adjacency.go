// Package adjacency groups remote walk output by depth and aggregates
// per-directory subtree sizes, per spec §4.8.
package adjacency

import (
	"context"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/walk"
)

// Result is the output of Build: entries grouped into ascending-depth
// buckets, plus the total size of every file visited.
type Result struct {
	DepthBuckets []netstorage.DepthBucket
	TotalSize    int64
}

// Build drains w, grouping its entries by depth and summing file sizes,
// per spec §4.8's buildAdjacencyList.
func Build(w *walk.Walker) (Result, error) {
	buckets := map[uint32]*netstorage.DepthBucket{}

	var order []uint32

	var total int64

	for {
		entry, ok, err := w.Next()
		if err != nil {
			return Result{}, err
		}

		if !ok {
			break
		}

		b, exists := buckets[entry.Depth]
		if !exists {
			b = &netstorage.DepthBucket{Depth: entry.Depth}
			buckets[entry.Depth] = b
			order = append(order, entry.Depth)
		}

		b.Entries = append(b.Entries, entry)

		if entry.File.Type == netstorage.EntryFile {
			total += entry.File.Size()
		}
	}

	out := make([]netstorage.DepthBucket, 0, len(order))
	for _, d := range sortedDepths(order) {
		out = append(out, *buckets[d])
	}

	return Result{DepthBuckets: out, TotalSize: total}, nil
}

func sortedDepths(depths []uint32) []uint32 {
	out := append([]uint32(nil), depths...)

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}

	return out
}

// flatten returns every entry across every bucket, in bucket order (i.e.
// ascending depth, server order within a depth).
func (r Result) flatten() []netstorage.WalkEntry {
	var out []netstorage.WalkEntry

	for _, b := range r.DepthBuckets {
		out = append(out, b.Entries...)
	}

	return out
}

// AggregateDirectorySizes computes, for every directory entry, the total
// size of every file anywhere in its subtree, per spec §4.8's
// aggregateDirectorySizes: entries are folded in reverse (deepest first),
// each file's size flows up to its parent's accumulator, and a
// directory's own accumulator becomes its subtree total once every
// descendant has contributed.
func (r Result) AggregateDirectorySizes() map[string]int64 {
	entries := r.flatten()

	sizes := map[string]int64{}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]

		if e.File.Type == netstorage.EntryFile {
			sizes[e.Parent] += e.File.Size()
			continue
		}

		// Directory: its own accumulated total (from descendants folded
		// so far) becomes its contribution to its own parent.
		sizes[e.Parent] += sizes[e.Path]
	}

	return sizes
}

// BuildAdjacencyList is the context-aware convenience entry point that
// builds a Walker, drains it, and returns its Result, matching spec
// §4.8's named operation.
func BuildAdjacencyList(ctx context.Context, cfg *netstorage.ClientConfig, path string, opts walk.Options) (Result, error) {
	w := walk.New(ctx, cfg, path, opts)
	return Build(w)
}

package contextfile

import (
	"sort"

	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/repo"
)

// Entry is one context file in emission order.
type Entry struct {
	Path string
	// Priority is set for files matched by a priority candidate name.
	Priority bool
}

type poolEntry struct {
	path  string
	base  string
	depth int
	taken bool
}

// Order returns the emission order for the context bucket.
//
// For each candidate name in turn, the still-unclaimed paths whose basename
// matches it are emitted shallowest first and claimed. Whatever remains
// follows, shallowest first. Ties keep bucket order, so the result depends
// only on the inputs.
func Order(paths []string, candidates []string) []Entry {
	pool := make([]*poolEntry, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		pool = append(pool, &poolEntry{path: p, base: repo.Base(p), depth: repo.Depth(p)})
	}

	out := make([]Entry, 0, len(pool))
	for _, name := range candidates {
		var matches []*poolEntry
		for _, e := range pool {
			if !e.taken && heuristics.MatchName(name, e.base) {
				matches = append(matches, e)
			}
		}
		sortByDepth(matches)
		for _, e := range matches {
			e.taken = true
			out = append(out, Entry{Path: e.path, Priority: true})
		}
	}

	var rest []*poolEntry
	for _, e := range pool {
		if !e.taken {
			rest = append(rest, e)
		}
	}
	sortByDepth(rest)
	for _, e := range rest {
		out = append(out, Entry{Path: e.path})
	}
	return out
}

func sortByDepth(entries []*poolEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].depth < entries[j].depth })
}

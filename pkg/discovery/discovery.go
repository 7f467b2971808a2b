// Package discovery finds the module roots of a repository for one language
// and resolves them to the scope a bridge build is restricted to.
package discovery

import (
	"context"
	"sort"

	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/repo"
)

// Candidate is a directory that directly contains a manifest of the
// selected language.
type Candidate struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// Discover streams the unscoped listing and returns one Candidate per
// directory holding a manifest, sorted by path. Only the set of matching
// directories is kept in memory, never the listing itself.
//
// An empty result is not an error; ResolveScope turns it into
// ErrEmptyInventory.
func Discover(ctx context.Context, lister repo.Lister, profile *heuristics.Profile) ([]Candidate, error) {
	seen := make(map[string]struct{})
	err := lister.List(ctx, nil, func(p string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !profile.IsManifest(repo.Base(p)) {
			return nil
		}
		seen[repo.Dir(p)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(seen))
	for dir := range seen {
		out = append(out, Candidate{Path: dir, Depth: repo.Depth(dir)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Paths returns the candidate paths in order.
func Paths(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Path
	}
	return out
}

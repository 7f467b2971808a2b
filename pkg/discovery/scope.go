package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gnana997/sential/pkg/repo"
)

var (
	// ErrEmptyInventory means no directory holds a manifest of the selected
	// language. It is an expected outcome, not an I/O failure.
	ErrEmptyInventory = errors.New("no modules found for the selected language")

	// ErrNoSelection means the selector returned an empty answer.
	ErrNoSelection = errors.New("no modules selected")
)

// RootLabel is how the repository root is shown in a choice list.
const RootLabel = "(Root)"

// SelectAllLabel is the label of the leading select-everything choice.
const SelectAllLabel = "Select All"

// Choice is one option offered to a Selector.
type Choice struct {
	Label     string
	Path      string
	SelectAll bool
}

// Selector picks a subset of choices. Implementations may block
// indefinitely, e.g. waiting on a terminal.
type Selector interface {
	SelectScopes(ctx context.Context, choices []Choice) ([]Choice, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context, choices []Choice) ([]Choice, error)

func (f SelectorFunc) SelectScopes(ctx context.Context, choices []Choice) ([]Choice, error) {
	return f(ctx, choices)
}

// StaticSelector answers with a fixed set of paths, or everything when All
// is set. Paths that are not offered are ignored.
type StaticSelector struct {
	All   bool
	Paths []string
}

func (s StaticSelector) SelectScopes(_ context.Context, choices []Choice) ([]Choice, error) {
	want := make(map[string]struct{}, len(s.Paths))
	for _, p := range s.Paths {
		want[repo.Normalize(p)] = struct{}{}
	}

	var out []Choice
	for _, c := range choices {
		if c.SelectAll {
			if s.All {
				return []Choice{c}, nil
			}
			continue
		}
		if _, ok := want[c.Path]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Choices builds the list shown to a Selector: "Select All" first, then
// one entry per candidate sorted by path.
func Choices(candidates []Candidate) []Choice {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	out := make([]Choice, 0, len(sorted)+1)
	out = append(out, Choice{Label: SelectAllLabel, Path: repo.Root, SelectAll: true})
	for _, c := range sorted {
		label := c.Path
		if c.Path == repo.Root {
			label = RootLabel
		}
		out = append(out, Choice{Label: label, Path: c.Path})
	}
	return out
}

// ResolveScope reduces candidates to the final scope.
//
// One candidate is taken without asking. With several, the selector
// decides; choosing "Select All" or the root yields the root alone, and any
// other answer is collapsed so no entry lies beneath another.
func ResolveScope(ctx context.Context, candidates []Candidate, sel Selector) ([]string, error) {
	switch len(candidates) {
	case 0:
		return nil, ErrEmptyInventory
	case 1:
		return []string{candidates[0].Path}, nil
	}

	if sel == nil {
		return nil, fmt.Errorf("%d modules found and no selector configured", len(candidates))
	}
	picked, err := sel.SelectScopes(ctx, Choices(candidates))
	if err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return nil, ErrNoSelection
	}

	paths := make([]string, 0, len(picked))
	for _, c := range picked {
		if c.SelectAll {
			return []string{repo.Root}, nil
		}
		paths = append(paths, c.Path)
	}
	return CollapseAncestors(paths), nil
}

// CollapseAncestors sorts paths ascending and drops every path that lies
// beneath an already accepted one. If the root is present the result is the
// root alone. Duplicates are removed.
func CollapseAncestors(paths []string) []string {
	norm := make([]string, 0, len(paths))
	for _, p := range paths {
		p = repo.Normalize(p)
		if p == repo.Root {
			return []string{repo.Root}
		}
		norm = append(norm, p)
	}
	sort.Strings(norm)

	accepted := make(map[string]struct{}, len(norm))
	out := make([]string, 0, len(norm))
	for _, p := range norm {
		if coveredBy(accepted, p) {
			continue
		}
		accepted[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// coveredBy reports whether p or one of its ancestor directories is in set.
func coveredBy(set map[string]struct{}, p string) bool {
	for cur := p; cur != repo.Root; cur = repo.Dir(cur) {
		if _, ok := set[cur]; ok {
			return true
		}
	}
	return false
}

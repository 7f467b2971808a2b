package discovery

import (
	"context"

	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/repo"
)

// Tally streams one unscoped listing and counts, per supported language, the
// directories that directly hold one of its manifests. Languages with no
// module root are absent from the result.
func Tally(ctx context.Context, lister repo.Lister) (map[heuristics.Language]int, error) {
	langs := heuristics.Languages()
	profiles := make([]*heuristics.Profile, 0, len(langs))
	for _, lang := range langs {
		p, err := heuristics.NewProfile(lang)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	roots := make(map[heuristics.Language]map[string]struct{})
	err := lister.List(ctx, nil, func(p string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		base := repo.Base(p)
		for _, prof := range profiles {
			if !prof.IsManifest(base) {
				continue
			}
			dirs := roots[prof.Language]
			if dirs == nil {
				dirs = make(map[string]struct{})
				roots[prof.Language] = dirs
			}
			dirs[repo.Dir(p)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[heuristics.Language]int, len(roots))
	for lang, dirs := range roots {
		out[lang] = len(dirs)
	}
	return out, nil
}

// Suggest picks the language with the most module roots. Ties go to the
// language listed first by heuristics.Languages.
func Suggest(tally map[heuristics.Language]int) (heuristics.Language, bool) {
	var best heuristics.Language
	n := 0
	for _, lang := range heuristics.Languages() {
		if tally[lang] > n {
			best, n = lang, tally[lang]
		}
	}
	return best, n > 0
}

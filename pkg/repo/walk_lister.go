package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/util"
)

// WalkLister lists files by walking the working tree. Directories named in
// heuristics.IgnoreDirs are pruned, and .gitignore files found in the tree
// are honored.
type WalkLister struct {
	root       string
	ignoreDirs map[string]struct{}
	logger     *slog.Logger
}

// NewWalkLister creates a lister rooted at root.
func NewWalkLister(root string, logger *slog.Logger) *WalkLister {
	if logger == nil {
		logger = util.Discard()
	}
	ignore := make(map[string]struct{}, len(heuristics.IgnoreDirs))
	for _, d := range heuristics.IgnoreDirs {
		ignore[d] = struct{}{}
	}
	return &WalkLister{root: root, ignoreDirs: ignore, logger: logger}
}

func (w *WalkLister) matcher() gitignore.Matcher {
	patterns, err := gitignore.ReadPatterns(osfs.New(w.root), nil)
	if err != nil {
		w.logger.Warn("failed to read .gitignore patterns", "error", err)
		return gitignore.NewMatcher(nil)
	}
	return gitignore.NewMatcher(patterns)
}

// List walks each scope in lexical order.
func (w *WalkLister) List(ctx context.Context, scopes []string, visit VisitFunc) error {
	scopes = normalizeScopes(scopes)
	if len(scopes) == 0 {
		scopes = []string{Root}
	}
	m := w.matcher()

	for _, scope := range scopes {
		start := filepath.Join(w.root, filepath.FromSlash(scope))
		if _, err := os.Lstat(start); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat scope %s: %w", scope, err)
		}

		err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				w.logger.Debug("walk error", "path", p, "error", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, relErr := filepath.Rel(w.root, p)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}
			parts := strings.Split(rel, "/")

			if d.IsDir() {
				if p == start {
					return nil
				}
				if _, skip := w.ignoreDirs[d.Name()]; skip {
					return fs.SkipDir
				}
				if m.Match(parts, true) {
					return fs.SkipDir
				}
				return nil
			}
			if m.Match(parts, false) {
				return nil
			}
			if strings.ContainsAny(rel, "\n\r") {
				return nil
			}
			return visit(rel)
		})
		if err != nil {
			if errors.Is(err, ErrStopListing) {
				return nil
			}
			return err
		}
	}
	return nil
}

package repo

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
)

// ErrStopListing may be returned by a VisitFunc to end a listing early
// without error.
var ErrStopListing = errors.New("stop listing")

// VisitFunc receives one repository-relative, forward-slash path per file.
type VisitFunc func(path string) error

// Lister streams the files of a working tree restricted to a set of scopes.
//
// An empty scope list, or the single scope ".", means the whole repository.
// Implementations deliver each path at most once and stop as soon as visit
// returns an error, which is then returned (ErrStopListing excepted).
type Lister interface {
	List(ctx context.Context, scopes []string, visit VisitFunc) error
}

// NewLister returns a GitLister when a git binary is available and a
// WalkLister otherwise.
func NewLister(root string, logger *slog.Logger) Lister {
	if gitPath, err := exec.LookPath("git"); err == nil {
		return NewGitLister(root, gitPath, logger)
	}
	if logger != nil {
		logger.Debug("git not found on PATH, walking working tree in-process")
	}
	return NewWalkLister(root, logger)
}

// ListAll collects every path from l. Intended for small trees and tests.
func ListAll(ctx context.Context, l Lister, scopes []string) ([]string, error) {
	var out []string
	err := l.List(ctx, scopes, func(p string) error {
		out = append(out, p)
		return nil
	})
	return out, err
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = Normalize(s)
		if s == Root {
			return nil
		}
		out = append(out, s)
	}
	return out
}

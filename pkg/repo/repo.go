// Package repo locates the repository being bridged and streams the files
// it tracks.
//
// Two listers are provided. GitLister shells out to git so that tracked and
// untracked-but-not-ignored files are reported exactly as git sees them.
// WalkLister walks the working tree in-process and applies .gitignore rules
// through go-git, for hosts without a git binary.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

var (
	// ErrNotDirectory is returned when the requested path does not name a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotRepository is returned when no git working tree contains the path.
	ErrNotRepository = errors.New("not a git repository")
)

// Repository describes an opened working tree.
type Repository struct {
	// Root is the absolute path of the working tree.
	Root string

	// Head is the commit hash HEAD points at, empty for a repository
	// without commits.
	Head string

	// Branch is the short name of the checked-out branch, empty when HEAD
	// is detached or unborn.
	Branch string
}

// Open resolves dir to the working tree that contains it.
func Open(dir string) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	r, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return nil, fmt.Errorf("open repository %s: %w", abs, err)
	}

	wt, err := r.Worktree()
	if err != nil {
		// Bare repositories have no working tree to read.
		return nil, fmt.Errorf("%w: %s: %v", ErrNotRepository, abs, err)
	}

	repo := &Repository{Root: wt.Filesystem.Root()}
	if ref, err := r.Head(); err == nil {
		repo.Head = ref.Hash().String()
		if ref.Name().IsBranch() {
			repo.Branch = ref.Name().Short()
		}
	}
	return repo, nil
}

// ShortHead returns the first 12 characters of Head.
func (r *Repository) ShortHead() string {
	if len(r.Head) > 12 {
		return r.Head[:12]
	}
	return r.Head
}

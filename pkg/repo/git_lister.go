package repo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/gnana997/sential/pkg/util"
)

// GitLister lists files with `git ls-files`, reporting tracked files and
// untracked files that are not excluded by the standard ignore rules.
type GitLister struct {
	root    string
	gitPath string
	logger  *slog.Logger
}

// NewGitLister creates a lister for the working tree at root. gitPath may be
// empty, in which case "git" is resolved through PATH at run time.
func NewGitLister(root, gitPath string, logger *slog.Logger) *GitLister {
	if gitPath == "" {
		gitPath = "git"
	}
	if logger == nil {
		logger = util.Discard()
	}
	return &GitLister{root: root, gitPath: gitPath, logger: logger}
}

func (g *GitLister) args(scopes []string) []string {
	args := []string{"ls-files", "-z", "--cached", "--others", "--exclude-standard"}
	if len(scopes) > 0 {
		args = append(args, "--")
		args = append(args, scopes...)
	}
	return args
}

// List runs git and streams its NUL-separated output to visit.
//
// Paths containing a newline are skipped. A path listed twice in a row (a
// file with unmerged index stages) is delivered once.
func (g *GitLister) List(ctx context.Context, scopes []string, visit VisitFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.gitPath, g.args(normalizeScopes(scopes))...)
	cmd.Dir = g.root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return util.NewResourceError("start git ls-files", err)
	}
	if err := cmd.Start(); err != nil {
		return util.NewResourceError("start git ls-files", err)
	}

	visitErr := g.stream(stdout, visit)
	if visitErr != nil {
		// Stop git early; its exit status no longer matters.
		cancel()
		_, _ = io.Copy(io.Discard, stdout)
		_ = cmd.Wait()
		if errors.Is(visitErr, ErrStopListing) {
			return nil
		}
		return visitErr
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (g *GitLister) stream(r io.Reader, visit VisitFunc) error {
	br := bufio.NewReader(r)
	var last string
	for {
		raw, err := br.ReadString(0)
		if len(raw) > 0 {
			p := strings.TrimSuffix(raw, "\x00")
			switch {
			case p == "":
			case strings.ContainsAny(p, "\n\r"):
				g.logger.Debug("skipping path with line break", "path", p)
			case p == last:
			default:
				last = p
				if verr := visit(p); verr != nil {
					return verr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read git ls-files output: %w", err)
		}
	}
}

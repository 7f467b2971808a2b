package inventory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/repo"
	"github.com/gnana997/sential/pkg/util"
)

// maxLineBytes bounds one scratch line when reading a bucket back.
const maxLineBytes = 1 << 20

// Inventory is the result of one classification pass.
type Inventory struct {
	// LanguageList and ContextList are scratch files holding one path per
	// line in listing order.
	LanguageList string
	ContextList  string

	LanguageCount int
	ContextCount  int

	// Excluded counts paths dropped by exclude globs.
	Excluded int
}

// Remove deletes both scratch files. Safe to call more than once.
func (inv *Inventory) Remove() error {
	if inv == nil {
		return nil
	}
	var errs []error
	for _, p := range []string{inv.LanguageList, inv.ContextList} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ContextPaths loads the context bucket.
func (inv *Inventory) ContextPaths() ([]string, error) {
	out := make([]string, 0, inv.ContextCount)
	err := EachLine(inv.ContextList, func(p string) error {
		out = append(out, p)
		return nil
	})
	return out, err
}

// EachLine calls fn for every non-empty line of a scratch file.
func EachLine(file string, fn func(string) error) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Config configures a Classifier.
type Config struct {
	// Exclude holds doublestar patterns matched against repository-relative
	// paths. Matching paths are dropped before classification.
	Exclude []string

	// SkipPaths are exact repository-relative paths to drop, such as an
	// output artifact written inside the repository.
	SkipPaths []string

	// ScratchDir is where bucket files are created. Empty means os.TempDir().
	ScratchDir string

	Logger *slog.Logger
}

// Classifier runs the scoped listing through Classify.
type Classifier struct {
	lister  repo.Lister
	profile *heuristics.Profile
	exclude []string
	skip    map[string]struct{}
	dir     string
	logger  *slog.Logger
}

// NewClassifier validates cfg and returns a Classifier.
func NewClassifier(lister repo.Lister, profile *heuristics.Profile, cfg Config) (*Classifier, error) {
	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[repo.Normalize(p)] = struct{}{}
	}
	return &Classifier{
		lister:  lister,
		profile: profile,
		exclude: cfg.Exclude,
		skip:    skip,
		dir:     cfg.ScratchDir,
		logger:  logger,
	}, nil
}

func (c *Classifier) excluded(p string) bool {
	if _, ok := c.skip[p]; ok {
		return true
	}
	for _, pattern := range c.exclude {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// bucketFile is a buffered scratch file.
type bucketFile struct {
	f *os.File
	w *bufio.Writer
}

func (c *Classifier) createBucket(kind string) (*bucketFile, error) {
	f, err := os.CreateTemp(c.dir, "sential_"+kind+"_*.txt")
	if err != nil {
		return nil, util.NewResourceError("create scratch file", err)
	}
	return &bucketFile{f: f, w: bufio.NewWriter(f)}, nil
}

func (b *bucketFile) close() error {
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

// Run classifies every file under scope. On error no scratch file is left
// behind; on success the caller owns the returned Inventory and must call
// Remove.
func (c *Classifier) Run(ctx context.Context, scope []string) (*Inventory, error) {
	start := time.Now()

	lang, err := c.createBucket("lang")
	if err != nil {
		return nil, err
	}
	ctxFile, err := c.createBucket("context")
	if err != nil {
		lang.f.Close()
		os.Remove(lang.f.Name())
		return nil, err
	}

	inv := &Inventory{LanguageList: lang.f.Name(), ContextList: ctxFile.f.Name()}
	fail := func(err error) (*Inventory, error) {
		lang.f.Close()
		ctxFile.f.Close()
		inv.Remove()
		return nil, err
	}

	var last string
	err = c.lister.List(ctx, scope, func(p string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == last || strings.ContainsAny(p, "\n\r") {
			return nil
		}
		last = p
		if c.excluded(p) {
			inv.Excluded++
			return nil
		}

		switch Classify(c.profile, p) {
		case BucketLanguage:
			inv.LanguageCount++
			_, err := lang.w.WriteString(p + "\n")
			return err
		case BucketContext:
			inv.ContextCount++
			_, err := ctxFile.w.WriteString(p + "\n")
			return err
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	if err := lang.close(); err != nil {
		return fail(fmt.Errorf("write language bucket: %w", err))
	}
	if err := ctxFile.close(); err != nil {
		return fail(fmt.Errorf("write context bucket: %w", err))
	}

	c.logger.Info("classification complete",
		"language_files", inv.LanguageCount,
		"context_files", inv.ContextCount,
		"excluded", inv.Excluded,
		"duration_ms", time.Since(start).Milliseconds())
	return inv, nil
}

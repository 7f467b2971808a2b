// Package bridge drives one build of the knowledge bridge: resolve scope,
// classify, emit context files, aggregate symbols, finalize the artifact.
//
// Phases run strictly in sequence against one payload.Writer. Whatever the
// outcome, scratch files are removed; on failure or cancellation the partial
// artifact is removed too.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gnana997/sential/pkg/contextfile"
	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/inventory"
	"github.com/gnana997/sential/pkg/payload"
	"github.com/gnana997/sential/pkg/repo"
	"github.com/gnana997/sential/pkg/symbols"
	"github.com/gnana997/sential/pkg/util"
)

// Request describes one build.
type Request struct {
	// Dir is the directory to bridge. It must lie inside a git working tree.
	Dir      string
	Language heuristics.Language

	// Scopes, when set, bypass discovery and selection. They are collapsed
	// so that no entry lies beneath another.
	Scopes []string

	// Selector chooses among several discovered modules.
	Selector discovery.Selector

	// Output is the artifact path. Empty means payload.DefaultPath().
	Output string

	// Compact caps non-priority context files at the tier 2 limit.
	Compact bool

	Exclude     []string
	SymbolKinds []string // empty means heuristics.DefaultSymbolKinds
	Grouping    symbols.Grouping
	ScratchDir  string
}

// Result summarizes a finalized build.
type Result struct {
	Output        string              `json:"output"`
	Root          string              `json:"root"`
	Head          string              `json:"head,omitempty"`
	Language      heuristics.Language `json:"language"`
	Scope         []string            `json:"scope"`
	LanguageFiles int                 `json:"language_files"`
	ContextFiles  int                 `json:"context_files"`
	Context       contextfile.Stats   `json:"context"`
	Symbols       symbols.Stats       `json:"symbols"`
	DurationMs    int64               `json:"duration_ms"`
}

// ListerFactory returns the lister for a root directory.
type ListerFactory func(root string) repo.Lister

// Options configures a Builder. Zero values pick the defaults.
type Options struct {
	Listers   ListerFactory
	Extractor symbols.Extractor
	Cache     *util.FileCache
	Logger    *slog.Logger

	// OnState is called after every state change.
	OnState func(State)
}

// Builder runs builds. A Builder may run several builds, one at a time
// per call; concurrent calls must use different output paths.
type Builder struct {
	listers   ListerFactory
	extractor symbols.Extractor
	cache     *util.FileCache
	logger    *slog.Logger
	onState   func(State)
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	listers := opts.Listers
	if listers == nil {
		listers = func(root string) repo.Lister { return repo.NewLister(root, logger) }
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = &symbols.CtagsExtractor{Logger: logger}
	}
	return &Builder{
		listers:   listers,
		extractor: extractor,
		cache:     opts.Cache,
		logger:    logger,
		onState:   opts.OnState,
	}
}

// run tracks the state of one build.
type run struct {
	b     *Builder
	state State
}

func (r *run) to(s State) {
	if !canTransition(r.state, s) {
		panic(fmt.Sprintf("bridge: illegal transition %s -> %s", r.state, s))
	}
	r.state = s
	r.b.logger.Debug("state", "state", s.String())
	if r.b.onState != nil {
		r.b.onState(s)
	}
}

// target validates the directory and language shared by Run and Modules.
func (b *Builder) target(dir string, lang heuristics.Language) (string, *repo.Repository, *heuristics.Profile, error) {
	profile, err := heuristics.NewProfile(lang)
	if err != nil {
		return "", nil, nil, err
	}
	if dir == "" {
		dir = "."
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	r, err := repo.Open(root)
	if err != nil {
		return "", nil, nil, err
	}
	return root, r, profile, nil
}

// Modules discovers the module roots of dir for lang without building.
func (b *Builder) Modules(ctx context.Context, dir string, lang heuristics.Language) ([]discovery.Candidate, error) {
	root, _, profile, err := b.target(dir, lang)
	if err != nil {
		return nil, err
	}
	return discovery.Discover(ctx, b.listers(root), profile)
}

// Run executes one build and returns its summary. On error the output path
// keeps whatever artifact it held before the run.
func (b *Builder) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	rn := &run{b: b, state: StateIdle}
	defer func() {
		if err != nil && !rn.state.Terminal() {
			rn.to(StateFailed)
		}
	}()

	root, r, profile, err := b.target(req.Dir, req.Language)
	if err != nil {
		return nil, err
	}
	lister := b.listers(root)

	b.logger.Info("building bridge",
		"root", root,
		"head", r.ShortHead(),
		"branch", r.Branch,
		"language", profile.Language.String())

	scope, err := b.resolveScope(ctx, lister, profile, req)
	if err != nil {
		return nil, err
	}
	rn.to(StateScopeResolved)
	b.logger.Info("scope resolved", "scope", strings.Join(scope, ","))

	output := req.Output
	if output == "" {
		output = payload.DefaultPath()
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	classifier, err := inventory.NewClassifier(lister, profile, inventory.Config{
		Exclude:    req.Exclude,
		SkipPaths:  insideRoot(root, output, payload.TempPath(output)),
		ScratchDir: req.ScratchDir,
		Logger:     b.logger,
	})
	if err != nil {
		return nil, err
	}
	inv, err := classifier.Run(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := inv.Remove(); rmErr != nil {
			b.logger.Warn("failed to remove scratch files", "error", rmErr)
		}
	}()
	rn.to(StateClassified)

	w, err := payload.Create(output)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if abortErr := w.Abort(); abortErr != nil {
				b.logger.Warn("failed to remove partial artifact", "path", output, "error", abortErr)
			}
		}
	}()

	emitter := contextfile.NewEmitter(contextfile.NewReader(root, b.cache), profile, b.logger)
	emitter.Compact = req.Compact
	ctxStats, err := emitter.Emit(ctx, inv, w)
	if err != nil {
		return nil, fmt.Errorf("context phase: %w", err)
	}
	rn.to(StateContextPhaseDone)

	var symStats symbols.Stats
	if inv.LanguageCount > 0 {
		kinds := req.SymbolKinds
		if len(kinds) == 0 {
			kinds = heuristics.DefaultSymbolKinds
		}
		agg := symbols.NewAggregator(kinds, req.Grouping, b.logger)
		symStats, err = agg.Run(ctx, b.extractor, root, inv.LanguageList, w)
		if err != nil {
			return nil, fmt.Errorf("symbol phase: %w", err)
		}
	} else {
		b.logger.Info("no source files in scope, skipping symbol phase")
	}
	rn.to(StateSymbolPhaseDone)

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if err = w.Commit(); err != nil {
		return nil, fmt.Errorf("finalize artifact: %w", err)
	}
	rn.to(StateFinalized)

	res = &Result{
		Output:        output,
		Root:          root,
		Head:          r.Head,
		Language:      profile.Language,
		Scope:         scope,
		LanguageFiles: inv.LanguageCount,
		ContextFiles:  inv.ContextCount,
		Context:       ctxStats,
		Symbols:       symStats,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	b.logger.Info("bridge finalized",
		"output", output,
		"context_records", ctxStats.Emitted,
		"symbol_records", symStats.Records,
		"duration_ms", res.DurationMs)
	return res, nil
}

func (b *Builder) resolveScope(ctx context.Context, lister repo.Lister, profile *heuristics.Profile, req Request) ([]string, error) {
	if len(req.Scopes) > 0 {
		return discovery.CollapseAncestors(req.Scopes), nil
	}
	candidates, err := discovery.Discover(ctx, lister, profile)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("modules discovered", "count", len(candidates))
	return discovery.ResolveScope(ctx, candidates, req.Selector)
}

// insideRoot returns, relative to root, those paths that lie inside it.
func insideRoot(root string, paths ...string) []string {
	var out []string
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/sential/pkg/bridge"
	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/publish"
	"github.com/gnana997/sential/pkg/repo"
	"github.com/gnana997/sential/pkg/symbols"
	"github.com/gnana997/sential/pkg/util"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	path      string
	logLevel  string
	logFormat string
}

func (g *globalOptions) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&g.path, "path", "p", ".", "repository to read")
	f.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&g.logFormat, "log-format", "", "log format: text or json")
}

// buildOptions are the flags of commands that produce an artifact.
type buildOptions struct {
	language string
	scopes   []string
	output   string
	compact  bool
	publish  bool
	exclude  []string
	ctags    string
	json     bool
}

func (b *buildOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&b.language, "language", "l", "", "primary language (e.g. Python, Go, ts)")
	f.StringSliceVarP(&b.scopes, "scope", "s", nil, "module directory to include; repeatable, skips the prompt")
	f.StringVarP(&b.output, "output", "o", "", "artifact path (default $TMPDIR/sential_payload.jsonl)")
	f.BoolVar(&b.compact, "compact", false, "cap non-priority context files at the lower limit")
	f.BoolVar(&b.publish, "publish", false, "upload the finalized artifact to the configured bucket")
	f.StringSliceVar(&b.exclude, "exclude", nil, "glob of repository paths to leave out; repeatable")
	f.StringVar(&b.ctags, "ctags", "", "ctags binary (default: first of ctags, universal-ctags, uctags on PATH)")
	f.BoolVar(&b.json, "json", false, "print the build summary as JSON instead of the artifact path")
}

// apply copies explicitly set flags over cfg.
func (b *buildOptions) apply(cmd *cobra.Command, cfg *ProjectConfig) {
	f := cmd.Flags()
	if f.Changed("language") {
		cfg.Language = b.language
	}
	if f.Changed("scope") {
		cfg.Scopes = b.scopes
	}
	if f.Changed("output") {
		cfg.Output = b.output
	}
	if f.Changed("compact") {
		cfg.Compact = b.compact
	}
	if f.Changed("exclude") {
		cfg.Exclude = b.exclude
	}
	if f.Changed("ctags") {
		cfg.Ctags = b.ctags
	}
}

// session is the resolved environment of one command invocation.
type session struct {
	root   string
	cfg    *ProjectConfig
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// openSession loads configuration for the target directory and applies the
// global flags. The directory itself is validated later by the builder.
func openSession(cmd *cobra.Command, g *globalOptions) (*session, error) {
	root, err := filepath.Abs(g.path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	cfg, warnings, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	// Relative paths from the config file are relative to the repository.
	if cfg.Output != "" && !filepath.IsAbs(cfg.Output) {
		cfg.Output = filepath.Join(root, cfg.Output)
	}
	if cfg.MCPLog != "" && !filepath.IsAbs(cfg.MCPLog) {
		cfg.MCPLog = filepath.Join(root, cfg.MCPLog)
	}

	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	lc := util.DefaultLoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	if cfg.LogLevel != "" {
		lc.Level = util.ParseLogLevel(cfg.LogLevel)
	}
	if cfg.LogFormat != "" {
		lc.Format = util.ParseLogFormat(cfg.LogFormat)
	}
	logger := util.NewLogger(lc)
	util.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn(w)
	}

	return &session{
		root:   root,
		cfg:    cfg,
		logger: logger,
		stdin:  cmd.InOrStdin(),
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}, nil
}

// interactive reports whether prompts can be shown.
func (s *session) interactive() bool {
	f, ok := s.stdin.(*os.File)
	return ok && isInteractive(f)
}

// builder creates a bridge.Builder from the session config. cache may be nil.
func (s *session) builder(cache *util.FileCache) (*bridge.Builder, error) {
	listers, err := s.listerFactory()
	if err != nil {
		return nil, err
	}
	return bridge.NewBuilder(bridge.Options{
		Listers:   listers,
		Extractor: &symbols.CtagsExtractor{Binary: s.cfg.Ctags, Logger: s.logger},
		Cache:     cache,
		Logger:    s.logger,
	}), nil
}

func (s *session) listerFactory() (bridge.ListerFactory, error) {
	switch strings.ToLower(strings.TrimSpace(s.cfg.Lister)) {
	case "", "auto":
		return nil, nil
	case "git":
		gitPath, err := exec.LookPath("git")
		if err != nil {
			return nil, util.NewResourceError("find git", err)
		}
		return func(root string) repo.Lister { return repo.NewGitLister(root, gitPath, s.logger) }, nil
	case "walk":
		return func(root string) repo.Lister { return repo.NewWalkLister(root, s.logger) }, nil
	}
	return nil, fmt.Errorf("unknown lister %q (want git, walk or auto)", s.cfg.Lister)
}

// language resolves the configured language, prompting on a terminal when
// none is set.
func (s *session) language(ctx context.Context, p *prompter) (heuristics.Language, error) {
	if strings.TrimSpace(s.cfg.Language) != "" {
		return heuristics.ParseLanguage(s.cfg.Language)
	}
	if p == nil || !s.interactive() {
		return "", fmt.Errorf("language is required: pass --language or set language in %s/%s", configDir, configFile)
	}
	return p.promptLanguage(ctx)
}

// request builds a bridge request. Without configured scopes the prompter
// picks modules on a terminal; otherwise every module is selected.
func (s *session) request(lang heuristics.Language, p *prompter) (bridge.Request, error) {
	grouping, err := symbols.ParseGrouping(s.cfg.SymbolGrouping)
	if err != nil {
		return bridge.Request{}, err
	}
	req := bridge.Request{
		Dir:         s.root,
		Language:    lang,
		Scopes:      s.cfg.Scopes,
		Output:      s.cfg.Output,
		Compact:     s.cfg.Compact,
		Exclude:     s.cfg.Exclude,
		SymbolKinds: s.cfg.SymbolKinds,
		Grouping:    grouping,
		ScratchDir:  s.cfg.ScratchDir,
	}
	if len(req.Scopes) == 0 {
		if p != nil && s.interactive() {
			req.Selector = p
		} else {
			s.logger.Debug("no terminal, selecting every module")
			req.Selector = discovery.StaticSelector{All: true}
		}
	}
	return req, nil
}

// publisher returns the configured uploader.
func (s *session) publisher() (*publish.S3Publisher, error) {
	if !s.cfg.Publish.Enabled() {
		return nil, fmt.Errorf("publishing requires publish.endpoint and publish.bucket in %s/%s or SENTIAL_S3_* variables", configDir, configFile)
	}
	return publish.NewS3Publisher(s.cfg.Publish)
}

// report prints the outcome of a build: the artifact path, or the summary
// as JSON.
func (s *session) report(res *bridge.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(s.stdout, res)
	}
	_, err := fmt.Fprintln(s.stdout, res.Output)
	return err
}

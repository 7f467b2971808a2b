// Package watch rebuilds the bridge when the working tree changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/sential/pkg/heuristics"
)

// DefaultDebounce is used when Options.DebounceMs is zero.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc performs one rebuild. Errors are logged, not fatal.
type RebuildFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	// DebounceMs is how long the tree must stay quiet before a rebuild.
	DebounceMs int

	// IgnorePatterns are doublestar patterns over repository-relative paths
	// whose changes never trigger a rebuild.
	IgnorePatterns []string

	// IgnorePaths are absolute paths whose changes are ignored, typically
	// the artifact itself.
	IgnorePaths []string
}

// Stats describes the watcher's activity.
type Stats struct {
	Rebuilds  int
	Failures  int
	LastError error
	Pending   bool
}

// Watcher groups bursts of file system events into single rebuilds.
//
// Usage:
//
//	w, err := watch.New(root, rebuild, watch.Options{DebounceMs: 300}, logger)
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx) // blocks until ctx is cancelled
type Watcher struct {
	watcher     *fsnotify.Watcher
	root        string
	rebuild     RebuildFunc
	options     Options
	debounce    time.Duration
	ignoreDirs  map[string]struct{}
	ignorePaths map[string]struct{}
	logger      *slog.Logger

	trigger chan struct{}

	mu    sync.Mutex
	timer *time.Timer
	stats Stats
}

// New creates a Watcher for root.
func New(root string, rebuild RebuildFunc, options Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, p := range options.IgnorePatterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	debounce := time.Duration(options.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ignoreDirs := make(map[string]struct{}, len(heuristics.IgnoreDirs))
	for _, d := range heuristics.IgnoreDirs {
		ignoreDirs[d] = struct{}{}
	}
	ignorePaths := make(map[string]struct{}, len(options.IgnorePaths))
	for _, p := range options.IgnorePaths {
		ignorePaths[filepath.Clean(p)] = struct{}{}
	}

	return &Watcher{
		watcher:     fw,
		root:        root,
		rebuild:     rebuild,
		options:     options,
		debounce:    debounce,
		ignoreDirs:  ignoreDirs,
		ignorePaths: ignorePaths,
		logger:      logger,
		trigger:     make(chan struct{}, 1),
	}, nil
}

// addTree watches dir and every directory beneath it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}

// Run watches until ctx is cancelled, rebuilding after each quiet period.
// Rebuilds run on the calling goroutine, one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}
	w.logger.Info("file watcher started", "root", w.root, "debounce_ms", w.debounce.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			w.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)

		case <-w.trigger:
			w.runRebuild(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}
	w.logger.Debug("file event", "op", event.Op.String(), "file", event.Name)

	if event.Op.Has(fsnotify.Create) {
		// New directories need their own watch.
		if err := w.addTree(event.Name); err != nil {
			w.logger.Debug("failed to watch new path", "path", event.Name, "error", err)
		}
	}
	if event.Op == fsnotify.Chmod {
		return
	}
	w.schedule()
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Pending = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) runRebuild(ctx context.Context) {
	w.mu.Lock()
	w.stats.Pending = false
	w.mu.Unlock()

	start := time.Now()
	err := w.rebuild(ctx)

	w.mu.Lock()
	w.stats.Rebuilds++
	w.stats.LastError = err
	if err != nil {
		w.stats.Failures++
	}
	w.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("rebuild failed", "error", err)
		return
	}
	w.logger.Info("rebuild complete", "duration_ms", time.Since(start).Milliseconds())
}

// shouldIgnore reports whether changes at the absolute path p are
// irrelevant.
func (w *Watcher) shouldIgnore(p string) bool {
	p = filepath.Clean(p)
	if _, ok := w.ignorePaths[p]; ok {
		return true
	}

	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return true
	}

	for _, seg := range strings.Split(rel, "/") {
		if _, ok := w.ignoreDirs[seg]; ok {
			return true
		}
	}
	for _, pattern := range w.options.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Stats returns a snapshot of the watcher's activity.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gnana997/sential/pkg/payload"
	"github.com/gnana997/sential/pkg/publish"
	"github.com/gnana997/sential/pkg/util"
	"github.com/gnana997/sential/pkg/watch"
)

func newWatchCmd(g *globalOptions) *cobra.Command {
	b := &buildOptions{}
	var debounceMs int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build the bridge, then rebuild it whenever the tree changes",
		Long: `Build once, then watch the repository and rebuild after every burst
of changes. The modules chosen for the first build are reused for every
rebuild. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			b.apply(cmd, s.cfg)
			if cmd.Flags().Changed("debounce") {
				s.cfg.Watch.DebounceMs = debounceMs
			}

			p := newPrompter(s.stdin, s.stderr)
			lang, err := s.language(cmd.Context(), p)
			if err != nil {
				return err
			}
			req, err := s.request(lang, p)
			if err != nil {
				return err
			}
			var pub *publish.S3Publisher
			if b.publish {
				if pub, err = s.publisher(); err != nil {
					return err
				}
			}

			cache, err := util.NewFileCache(&util.FileCacheConfig{
				MaxFiles:    util.DefaultFileCacheConfig().MaxFiles,
				MaxMapBytes: util.DefaultFileCacheConfig().MaxMapBytes,
				Logger:      s.logger,
			})
			if err != nil {
				return err
			}
			defer cache.Close()

			builder, err := s.builder(cache)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			res, err := builder.Run(ctx, req)
			if err != nil {
				return err
			}
			if pub != nil {
				if err := publishResult(ctx, s, pub, res); err != nil {
					return err
				}
			}
			if err := s.report(res, b.json); err != nil {
				return err
			}

			// Later builds reuse the resolved scope and output.
			req.Scopes = res.Scope
			req.Selector = nil
			req.Output = res.Output

			rebuild := func(ctx context.Context) error {
				res, err := builder.Run(ctx, req)
				if err != nil {
					return err
				}
				if pub != nil {
					return publishResult(ctx, s, pub, res)
				}
				return nil
			}

			w, err := watch.New(res.Root, rebuild, watch.Options{
				DebounceMs:     s.cfg.Watch.DebounceMs,
				IgnorePatterns: s.cfg.Watch.Ignore,
				IgnorePaths:    []string{res.Output, payload.TempPath(res.Output), filepath.Join(res.Root, configDir)},
			}, s.logger)
			if err != nil {
				return err
			}
			s.logger.Info("watching for changes", "root", res.Root)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	b.register(cmd)
	cmd.Flags().IntVar(&debounceMs, "debounce", 0, "quiet period in milliseconds before a rebuild (default 500)")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gnana997/sential/pkg/bridge"
	"github.com/gnana997/sential/pkg/publish"
)

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	b := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "sential",
		Short: "Sential - build a knowledge bridge for a repository",
		Long: `Sential reads a git repository and writes one JSONL artifact for an
AI assistant: documentation and manifests first, in priority order, followed
by a symbol outline of every source file of the chosen language.

Examples:
  sential --language python                  # prompt for modules, write to $TMPDIR
  sential -l go -s services/api -o api.jsonl # one module, explicit output
  sential modules -l ts                      # list detected modules
  sential serve                              # MCP server on stdio`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, g, b)
		},
	}
	g.register(cmd)
	b.register(cmd)

	cmd.AddCommand(
		newModulesCmd(g),
		newLanguagesCmd(),
		newServeCmd(g),
		newWatchCmd(g),
		newSetupCmd(),
		newVersionCmd(),
	)
	return cmd
}

func runGenerate(cmd *cobra.Command, g *globalOptions, b *buildOptions) error {
	s, err := openSession(cmd, g)
	if err != nil {
		return err
	}
	b.apply(cmd, s.cfg)

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
		// Validate before doing any work.
		if pub, err = s.publisher(); err != nil {
			return err
		}
	}

	builder, err := s.builder(nil)
	if err != nil {
		return err
	}
	res, err := builder.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if pub != nil {
		if err := publishResult(cmd.Context(), s, pub, res); err != nil {
			return err
		}
	}
	return s.report(res, b.json)
}

// publishResult uploads a finalized artifact and logs where it went.
func publishResult(ctx context.Context, s *session, pub *publish.S3Publisher, res *bridge.Result) error {
	obj, err := pub.Publish(ctx, res.Output, publish.Metadata{
		Repo:     filepath.Base(res.Root),
		Head:     res.Head,
		Language: res.Language.String(),
	})
	if err != nil {
		return err
	}
	s.logger.Info("artifact published", "bucket", obj.Bucket, "key", obj.Key, "size", obj.Size)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

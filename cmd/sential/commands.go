package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
)

func newModulesCmd(g *globalOptions) *cobra.Command {
	var language string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the modules detected for a language",
		Long: `List every directory holding a manifest of the chosen language, in
the order the scope prompt shows them. "(Root)" is the repository itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("language") {
				s.cfg.Language = language
			}
			lang, err := s.language(cmd.Context(), newPrompter(s.stdin, s.stderr))
			if err != nil {
				return err
			}
			builder, err := s.builder(nil)
			if err != nil {
				return err
			}
			candidates, err := builder.Modules(cmd.Context(), s.root, lang)
			if err != nil {
				return err
			}
			if asJSON {
				if candidates == nil {
					candidates = []discovery.Candidate{}
				}
				return writeJSON(s.stdout, candidates)
			}
			if len(candidates) == 0 {
				return discovery.ErrEmptyInventory
			}
			for _, c := range discovery.Choices(candidates) {
				if c.SelectAll {
					continue
				}
				fmt.Fprintln(s.stdout, c.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "primary language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print modules as JSON")
	return cmd
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages with their manifests and extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LANGUAGE\tMANIFESTS\tEXTENSIONS")
			for _, lang := range heuristics.Languages() {
				h, _ := heuristics.Lookup(lang)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", lang,
					strings.Join(h.Manifests, " "),
					strings.Join(h.Extensions, " "))
			}
			return tw.Flush()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sential %s\n", version)
		},
	}
}

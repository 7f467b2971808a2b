package main

import (
	"github.com/spf13/cobra"

	"github.com/gnana997/sential/pkg/heuristics"
	mcpserver "github.com/gnana997/sential/pkg/mcp"
	"github.com/gnana997/sential/pkg/mcplog"
	"github.com/gnana997/sential/pkg/symbols"
	"github.com/gnana997/sential/pkg/util"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var language, logFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serve list_languages, list_modules, build_bridge and read_bridge over
the Model Context Protocol on stdin/stdout. Logs go to stderr; tool calls
are appended to --log-file as JSONL when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("language") {
				s.cfg.Language = language
			}
			if cmd.Flags().Changed("log-file") {
				s.cfg.MCPLog = logFile
			}

			// An unset language is fine here: clients pass it per call.
			var lang heuristics.Language
			if s.cfg.Language != "" {
				if lang, err = heuristics.ParseLanguage(s.cfg.Language); err != nil {
					return err
				}
			}
			grouping, err := symbols.ParseGrouping(s.cfg.SymbolGrouping)
			if err != nil {
				return err
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

			callLog, err := mcplog.NewLogger(s.cfg.MCPLog)
			if err != nil {
				return err
			}
			if callLog != nil {
				defer callLog.Close()
			}

			srv := mcpserver.NewServer(builder, mcpserver.Defaults{
				Dir:         s.root,
				Language:    lang,
				Output:      s.cfg.Output,
				Compact:     s.cfg.Compact,
				Exclude:     s.cfg.Exclude,
				SymbolKinds: s.cfg.SymbolKinds,
				Grouping:    grouping,
				ScratchDir:  s.cfg.ScratchDir,
			}, callLog)
			s.logger.Info("mcp server starting", "root", s.root, "language", string(lang))
			return srv.ServeStdio()
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "default language for tool calls")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append tool calls to this JSONL file")
	return cmd
}

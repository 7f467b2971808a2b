package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/repo"
)

// serverName is the key sential is registered under in agent configs.
const serverName = "sential"

// projectMCPFile is where CLI agents keep project-scoped servers.
const projectMCPFile = ".mcp.json"

// registration says how an agent learns about MCP servers.
type registration int

const (
	viaCLI  registration = iota // "<binary> mcp add"
	viaFile                     // JSON config edited in place
)

// agent describes one MCP client sential can register with.
type agent struct {
	id        string
	name      string
	how       registration
	binary    string        // viaCLI: executable looked up on PATH
	scoped    bool          // viaCLI: accepts --scope project|user
	marker    string        // viaFile: directory showing the agent is used here
	config    func() string // viaFile: config file location
	key       string        // object holding the server map
	transport string        // written as the entry's "type" when set
}

// target is an agent found on this machine together with where its
// registration lives.
type target struct {
	agent
	configPath string
	registered bool
}

// Replaceable for testing.
var (
	lookPathFunc = exec.LookPath
	statFunc     = os.Stat
	runAgentCLI  = func(binary string, args []string, w io.Writer) error {
		cmd := exec.Command(binary, args...)
		cmd.Stdout = w
		cmd.Stderr = w
		return cmd.Run()
	}
	setupLister = func(dir string) repo.Lister { return repo.NewLister(dir, slog.Default()) }
)

var agents = []agent{
	{id: "claude_code", name: "Claude Code", how: viaCLI, binary: "claude", scoped: true, key: "mcpServers"},
	{id: "openai_codex", name: "OpenAI Codex", how: viaCLI, binary: "codex", scoped: true, key: "mcpServers"},
	{
		id: "vscode_copilot", name: "VS Code Copilot", how: viaFile,
		marker: ".vscode", config: inProject(".vscode", "mcp.json"),
		key: "servers", transport: "stdio",
	},
	{
		id: "cursor", name: "Cursor", how: viaFile,
		marker: ".cursor", config: inProject(".cursor", "mcp.json"),
		key: "mcpServers",
	},
	{id: "claude_desktop", name: "Claude Desktop", how: viaFile, config: claudeDesktopConfigPath, key: "mcpServers"},
}

func inProject(elem ...string) func() string {
	return func() string { return filepath.Join(elem...) }
}

// claudeDesktopConfigPath returns the OS-specific Claude Desktop config path.
func claudeDesktopConfigPath() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

// locate reports whether a is present. CLI agents need their binary on
// PATH; file agents need their marker directory, or for user-level configs
// the directory the config lives in.
func (a agent) locate() (target, bool) {
	switch a.how {
	case viaCLI:
		if _, err := lookPathFunc(a.binary); err != nil {
			return target{}, false
		}
		return target{agent: a, configPath: projectMCPFile, registered: hasServer(projectMCPFile, a.key)}, true
	case viaFile:
		path := a.config()
		anchor := a.marker
		if anchor == "" {
			anchor = filepath.Dir(path)
		}
		if _, err := statFunc(anchor); err != nil {
			return target{}, false
		}
		return target{agent: a, configPath: path, registered: hasServer(path, a.key)}, true
	}
	return target{}, false
}

// detectAgents returns the agents present, in registry order.
func detectAgents() []target {
	var out []target
	for _, a := range agents {
		if t, ok := a.locate(); ok {
			out = append(out, t)
		}
	}
	return out
}

// hasServer reports whether the JSON file at path already registers sential
// under key. Unreadable or malformed files count as not registered.
func hasServer(path, key string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	var servers map[string]json.RawMessage
	if err := json.Unmarshal(doc[key], &servers); err != nil {
		return false
	}
	_, ok := servers[serverName]
	return ok
}

// serverEntry is the MCP server object agents launch sential from.
type serverEntry struct {
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// serveArgs are the arguments an agent launches sential with.
func serveArgs(language string) []string {
	args := []string{"serve"}
	if language != "" {
		args = append(args, "--language", language)
	}
	return args
}

func newServerEntry(language, transport string) serverEntry {
	return serverEntry{Type: transport, Command: serverName, Args: serveArgs(language)}
}

// addServer inserts entry under key in the JSON document existing, keeping
// every other field verbatim. It returns nil when sential is already there.
func addServer(existing []byte, key string, entry serverEntry) ([]byte, error) {
	doc := make(map[string]json.RawMessage)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers := make(map[string]json.RawMessage)
	if raw, ok := doc[key]; ok {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return nil, fmt.Errorf("invalid JSON: %q is not an object: %w", key, err)
		}
	}
	if _, ok := servers[serverName]; ok {
		return nil, nil
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	servers[serverName] = encoded
	if doc[key], err = json.Marshal(servers); err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// writeServerConfig registers sential in the JSON config of a file agent,
// creating the file and its directory when missing.
func writeServerConfig(path, key string, entry serverEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	merged, err := addServer(existing, key, entry)
	if err != nil || merged == nil {
		return err
	}
	return os.WriteFile(path, merged, 0644)
}

// cliAgentArgs builds `<binary> mcp add` arguments for the chosen scope.
func cliAgentArgs(scope, language string) []string {
	args := []string{"mcp", "add"}
	if scope != "" {
		args = append(args, "--scope", scope)
	}
	args = append(args, serverName, "--", serverName)
	return append(args, serveArgs(language)...)
}

// setupOptions holds parsed flags for the setup command.
type setupOptions struct {
	auto     bool
	language string
}

func newSetupCmd() *cobra.Command {
	var opts setupOptions
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the sential MCP server with detected AI agents",
		Long: `Detect installed AI agents and add sential to their MCP server
configuration. File-based agents are edited in place; CLI agents are
configured through their own "mcp add" command.

Without --language, setup looks for module manifests in the current
directory and offers the language with the most modules as the server's
default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeSetup(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.auto, "auto", false, "configure every detected agent without prompting")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "default language passed to the server")
	return cmd
}

// setupRun carries one setup invocation.
type setupRun struct {
	p        *prompter
	w        io.Writer
	auto     bool
	language string
}

// executeSetup detects agents and registers sential with each one not yet
// configured. Only cancellation and an invalid --language are errors;
// per-agent failures are reported and skipped.
func executeSetup(ctx context.Context, r io.Reader, w io.Writer, opts setupOptions) error {
	found := detectAgents()
	if len(found) == 0 {
		fmt.Fprintln(w, "No supported AI agents detected.")
		return nil
	}

	fmt.Fprintln(w, "Detected AI agents:")
	pending := 0
	for _, t := range found {
		if t.registered {
			fmt.Fprintf(w, "  * %s (already configured)\n", t.name)
			continue
		}
		pending++
		fmt.Fprintf(w, "  * %s\n", t.name)
	}
	fmt.Fprintln(w)
	if pending == 0 {
		return nil
	}

	s := &setupRun{p: newPrompter(r, w), w: w, auto: opts.auto}
	if !s.auto {
		ok, err := s.p.promptYesNo(ctx, "Configure agents? [Y/n]")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(w, "Setup cancelled.")
			return nil
		}
	}

	lang, err := s.serverLanguage(ctx, opts.language)
	if err != nil {
		return err
	}
	s.language = lang

	for _, t := range found {
		if t.registered {
			continue
		}
		if err := s.configure(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// serverLanguage settles the --language registered with the server. An
// explicit flag wins. Otherwise the language with the most module roots in
// the current directory is offered; declining it, or finding none, leaves
// the choice to the server.
func (s *setupRun) serverLanguage(ctx context.Context, flag string) (string, error) {
	if flag != "" {
		lang, err := heuristics.ParseLanguage(flag)
		if err != nil {
			return "", err
		}
		return string(lang), nil
	}

	tally, err := discovery.Tally(ctx, setupLister("."))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Debug("language suggestion unavailable", "error", err)
		return "", nil
	}
	lang, ok := discovery.Suggest(tally)
	if !ok {
		return "", nil
	}

	if s.auto {
		fmt.Fprintf(s.w, "Default language: %s (%d modules)\n", lang, tally[lang])
		return string(lang), nil
	}
	use, err := s.p.promptYesNo(ctx, fmt.Sprintf("Found %d %s modules. Start the server with --language %q? [Y/n]", tally[lang], lang, lang))
	if err != nil || !use {
		return "", err
	}
	return string(lang), nil
}

func (s *setupRun) configure(ctx context.Context, t target) error {
	switch t.how {
	case viaCLI:
		scope := "project"
		if t.scoped && !s.auto {
			var err error
			if scope, err = s.p.promptScope(ctx, t.name); err != nil {
				return err
			}
			if scope == "" {
				fmt.Fprintln(s.w, "  skipped")
				return nil
			}
		}
		if err := runAgentCLI(t.binary, cliAgentArgs(scope, s.language), s.w); err != nil {
			fmt.Fprintf(s.w, "  ! %s: failed: %v\n", t.name, err)
			return nil
		}
		fmt.Fprintf(s.w, "  + %s configured (scope: %s)\n", t.name, scope)

	case viaFile:
		if !s.auto {
			ok, err := s.p.promptYesNo(ctx, fmt.Sprintf("\n%s: add to %s? [Y/n]", t.name, t.configPath))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(s.w, "  skipped")
				return nil
			}
		}
		if err := writeServerConfig(t.configPath, t.key, newServerEntry(s.language, t.transport)); err != nil {
			fmt.Fprintf(s.w, "  ! %s: failed: %v\n", t.name, err)
			return nil
		}
		fmt.Fprintf(s.w, "  + %s configured (%s)\n", t.name, t.configPath)
	}
	return nil
}

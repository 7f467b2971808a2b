package mcp

import (
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/sential/pkg/bridge"
	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/mcplog"
	"github.com/gnana997/sential/pkg/symbols"
)

const serverVersion = "0.1.0-dev"

// Defaults fill in tool arguments the client leaves out.
type Defaults struct {
	Dir         string
	Language    heuristics.Language
	Output      string
	Compact     bool
	Exclude     []string
	SymbolKinds []string
	Grouping    symbols.Grouping
	ScratchDir  string
}

// Server exposes bridge building over MCP.
type Server struct {
	mcpServer *server.MCPServer
	builder   *bridge.Builder
	defaults  Defaults
	logger    *mcplog.Logger // nil disables call logging

	// buildMu serializes builds: they share scratch space and usually the
	// same output path.
	buildMu sync.Mutex
}

// NewServer creates a server backed by b. logger may be nil.
func NewServer(b *bridge.Builder, defaults Defaults, logger *mcplog.Logger) *Server {
	s := &Server{builder: b, defaults: defaults, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if logger != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.recordCalls()))
	}
	s.mcpServer = server.NewMCPServer("sential", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: listLanguagesTool(), Handler: s.handleListLanguages},
		server.ServerTool{Tool: listModulesTool(), Handler: s.handleListModules},
		server.ServerTool{Tool: buildBridgeTool(), Handler: s.handleBuildBridge},
		server.ServerTool{Tool: readBridgeTool(), Handler: s.handleReadBridge},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

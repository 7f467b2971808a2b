package mcp

import "github.com/mark3labs/mcp-go/mcp"

func listLanguagesTool() mcp.Tool {
	return mcp.NewTool("list_languages",
		mcp.WithDescription("Lists the supported languages with the manifest names and source extensions used to classify files."),
	)
}

func listModulesTool() mcp.Tool {
	return mcp.NewTool("list_modules",
		mcp.WithDescription("Lists directories holding a manifest of the given language. These are the scopes build_bridge can be restricted to."),
		mcp.WithString("dir", mcp.Description("Repository directory. Defaults to the server's directory.")),
		mcp.WithString("language", mcp.Description("Language name or alias, e.g. \"GO\", \"python\", \"ts\".")),
	)
}

func buildBridgeTool() mcp.Tool {
	return mcp.NewTool("build_bridge",
		mcp.WithDescription("Builds the JSONL knowledge bridge for a repository: priority-ordered context files followed by per-file symbol lists. Returns a summary with the artifact path."),
		mcp.WithString("dir", mcp.Description("Repository directory. Defaults to the server's directory.")),
		mcp.WithString("language", mcp.Description("Language name or alias.")),
		mcp.WithArray("scopes",
			mcp.Description("Module directories to restrict the build to. When omitted every discovered module is included."),
			mcp.WithStringItems(),
		),
		mcp.WithString("output", mcp.Description("Artifact path. Defaults to the configured output.")),
		mcp.WithBoolean("compact", mcp.Description("Cap non-priority context files at 50,000 characters.")),
	)
}

func readBridgeTool() mcp.Tool {
	return mcp.NewTool("read_bridge",
		mcp.WithDescription("Reads records from a finalized bridge artifact, in artifact order, up to a byte budget."),
		mcp.WithString("output", mcp.Description("Artifact path. Defaults to the configured output.")),
		mcp.WithString("kind", mcp.Description("\"context\", \"symbols\" or \"all\" (default).")),
		mcp.WithString("path_prefix", mcp.Description("Only records whose path starts with this prefix.")),
		mcp.WithNumber("max_bytes", mcp.Description("Stop before the response exceeds this many bytes. Default 200000.")),
	)
}

package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/sential/pkg/bridge"
	"github.com/gnana997/sential/pkg/mcplog"
)

// callNote carries what a handler learned during one call back to the call
// log. Handlers find it on the context; a nil note means nobody is logging
// and every method is a no-op.
type callNote struct {
	queued time.Duration
	output string
	files  int
}

type callNoteKey struct{}

func noteFrom(ctx context.Context) *callNote {
	n, _ := ctx.Value(callNoteKey{}).(*callNote)
	return n
}

// waited records how long a build sat behind buildMu.
func (n *callNote) waited(since time.Time) {
	if n != nil {
		n.queued = time.Since(since)
	}
}

// built records the artifact of a finished build.
func (n *callNote) built(res *bridge.Result) {
	if n != nil && res != nil {
		n.output = res.Output
		n.files = res.LanguageFiles + res.ContextFiles
	}
}

// recordCalls appends one mcplog entry per tool call. Installed only when
// the server has a call logger; write failures are dropped so logging never
// changes a result.
func (s *Server) recordCalls() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			note := &callNote{}
			start := mcplog.Now()
			result, err := next(context.WithValue(ctx, callNoteKey{}, note), req)
			_ = s.logger.Write(callEntry(req, start, note, result, err))
			return result, err
		}
	}
}

func callEntry(req mcp.CallToolRequest, start time.Time, note *callNote, result *mcp.CallToolResult, err error) mcplog.LogEntry {
	size := mcplog.ResponseBytes(result)
	e := mcplog.LogEntry{
		Ts:            start.UTC().Format(time.RFC3339),
		Tool:          req.Params.Name,
		Params:        mcplog.SanitizeParams(req.GetArguments()),
		DurationMs:    time.Since(start).Milliseconds(),
		ResponseBytes: size,
		TokensEst:     mcplog.EstimateTokens(size),
		ToolError:     result != nil && result.IsError,
		Detail:        mcplog.ErrorDetail(result),
		QueuedMs:      note.queued.Milliseconds(),
		Output:        note.output,
		Files:         note.files,
	}
	if err != nil {
		msg := err.Error()
		e.Error = &msg
	}
	return e
}

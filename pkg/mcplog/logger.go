// Package mcplog records MCP tool calls as JSONL, one line per call.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// LogEntry is the schema for one JSONL line written per tool call.
type LogEntry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	TokensEst     int            `json:"tokens_est"`
	// ToolError is set when the tool reported a failure in its result
	// rather than as a protocol error; Detail then holds its message.
	ToolError bool    `json:"tool_error,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Error     *string `json:"error"`

	// Build calls only.
	QueuedMs int64  `json:"queued_ms,omitempty"`
	Output   string `json:"output,omitempty"`
	Files    int    `json:"files,omitempty"`
}

// Logger appends entries to a file. It is safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewLogger opens (or creates) the file at path for append-only writing,
// creating parent directories. An empty path returns nil, nil: callers treat
// a nil Logger as disabled.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &Logger{f: f, enc: enc}, nil
}

// Write appends one entry. Callers usually ignore the error so that log
// failures never change a tool result.
func (l *Logger) Write(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// sensitiveKeys never reach the log, whatever their value.
var sensitiveKeys = map[string]struct{}{
	"access_key": {},
	"secret_key": {},
}

// SanitizeParams returns a copy of args safe for logging. Long strings are
// replaced by a "{key}_len" entry, lists by a "{key}_count" entry, and
// credentials are dropped.
func SanitizeParams(args map[string]any) map[string]any {
	const shortStringMax = 256
	out := make(map[string]any, len(args))
	for k, v := range args {
		if _, secret := sensitiveKeys[k]; secret {
			continue
		}
		switch val := v.(type) {
		case string:
			if len(val) > shortStringMax {
				out[k+"_len"] = len(val)
				continue
			}
			out[k] = val
		case []any:
			out[k+"_count"] = len(val)
		case []string:
			out[k+"_count"] = len(val)
		default:
			out[k] = v
		}
	}
	return out
}

// ResponseBytes returns the serialized length of a result's content, or 0
// for a nil result or on marshal error.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}

// detailMax caps Detail so a failing tool cannot flood the log.
const detailMax = 200

// ErrorDetail returns the text of an error result, capped at detailMax
// bytes. Successful or empty results yield "".
func ErrorDetail(result *mcp.CallToolResult) string {
	if result == nil || !result.IsError {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			if len(tc.Text) > detailMax {
				return tc.Text[:detailMax]
			}
			return tc.Text
		}
	}
	return ""
}

// EstimateTokens approximates the token count of n bytes of text.
func EstimateTokens(n int) int {
	return n / 4
}

// Now is a replaceable clock for testing.
var Now = func() time.Time { return time.Now() }

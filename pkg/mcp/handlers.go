package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/sential/pkg/bridge"
	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/payload"
)

const defaultReadBudget = 200_000

var errStopRead = errors.New("read budget exhausted")

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) language(req mcp.CallToolRequest) (heuristics.Language, error) {
	if name := req.GetString("language", ""); name != "" {
		return heuristics.ParseLanguage(name)
	}
	if s.defaults.Language != "" {
		return s.defaults.Language, nil
	}
	return "", errors.New("language is required; call list_languages for the options")
}

func (s *Server) dir(req mcp.CallToolRequest) string {
	return req.GetString("dir", s.defaults.Dir)
}

func (s *Server) output(req mcp.CallToolRequest) string {
	if out := req.GetString("output", ""); out != "" {
		return out
	}
	if s.defaults.Output != "" {
		return s.defaults.Output
	}
	return payload.DefaultPath()
}

type languageInfo struct {
	Name       string   `json:"name"`
	Manifests  []string `json:"manifests"`
	Extensions []string `json:"extensions"`
}

func (s *Server) handleListLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	langs := heuristics.Languages()
	out := make([]languageInfo, 0, len(langs))
	for _, l := range langs {
		h, _ := heuristics.Lookup(l)
		out = append(out, languageInfo{Name: l.String(), Manifests: h.Manifests, Extensions: h.Extensions})
	}
	return jsonResult(out)
}

func (s *Server) handleListModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := s.language(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	candidates, err := s.builder.Modules(ctx, s.dir(req), lang)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"language": lang.String(),
		"modules":  candidates,
	})
}

func (s *Server) handleBuildBridge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := s.language(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note := noteFrom(ctx)
	waitStart := time.Now()
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	note.waited(waitStart)

	res, err := s.builder.Run(ctx, bridge.Request{
		Dir:         s.dir(req),
		Language:    lang,
		Scopes:      req.GetStringSlice("scopes", nil),
		Selector:    discovery.StaticSelector{All: true},
		Output:      s.output(req),
		Compact:     req.GetBool("compact", s.defaults.Compact),
		Exclude:     s.defaults.Exclude,
		SymbolKinds: s.defaults.SymbolKinds,
		Grouping:    s.defaults.Grouping,
		ScratchDir:  s.defaults.ScratchDir,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note.built(res)
	return jsonResult(res)
}

type readResult struct {
	Records   []payload.Record `json:"records"`
	Truncated bool             `json:"truncated"`
}

func (s *Server) handleReadBridge(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := strings.ToLower(req.GetString("kind", "all"))
	if kind != "all" && kind != "context" && kind != "symbols" {
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", kind)), nil
	}
	prefix := req.GetString("path_prefix", "")
	budget := req.GetInt("max_bytes", defaultReadBudget)
	if budget <= 0 {
		budget = defaultReadBudget
	}

	out := readResult{Records: []payload.Record{}}
	used := 0
	err := payload.ReadFile(s.output(req), func(r payload.Record) error {
		if (kind == "context" && !r.IsContext()) || (kind == "symbols" && r.IsContext()) {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(r.Path, prefix) {
			return nil
		}
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if used+len(b) > budget {
			out.Truncated = true
			return errStopRead
		}
		used += len(b)
		out.Records = append(out.Records, r)
		return nil
	})
	if err != nil && !errors.Is(err, errStopRead) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/sential/pkg/discovery"
	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/inventory"
	"github.com/gnana997/sential/pkg/payload"
	"github.com/gnana997/sential/pkg/repo"
	"github.com/gnana997/sential/pkg/symbols"
	"github.com/gnana997/sential/pkg/util"
)

// fakeExtractor emits one function symbol per listed path.
type fakeExtractor struct {
	startErr error
	waitErr  error
	listed   []string
}

type fakeStream struct {
	io.Reader
	err error
}

func (s *fakeStream) Wait() error { return s.err }

func (f *fakeExtractor) Start(_ context.Context, _ string, listFile string) (symbols.Stream, error) {
	if f.startErr != nil {
		return nil, util.NewResourceError("start ctags", f.startErr)
	}
	var out strings.Builder
	err := inventory.EachLine(listFile, func(p string) error {
		f.listed = append(f.listed, p)
		fmt.Fprintf(&out, `{"_type":"tag","path":%q,"kind":"function","name":"main"}`+"\n", p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &fakeStream{Reader: strings.NewReader(out.String()), err: f.waitErr}, nil
}

type fixture struct {
	root    string
	scratch string
	output  string
	states  []State
	ex      *fakeExtractor
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return &fixture{
		root:    root,
		scratch: t.TempDir(),
		output:  filepath.Join(t.TempDir(), "payload.jsonl"),
		ex:      &fakeExtractor{},
	}
}

func (f *fixture) builder(onState func(State)) *Builder {
	return NewBuilder(Options{
		Listers:   func(root string) repo.Lister { return repo.NewWalkLister(root, nil) },
		Extractor: f.ex,
		Logger:    util.Discard(),
		OnState: func(s State) {
			f.states = append(f.states, s)
			if onState != nil {
				onState(s)
			}
		},
	})
}

func (f *fixture) request(lang heuristics.Language) Request {
	return Request{
		Dir:        f.root,
		Language:   lang,
		Selector:   discovery.StaticSelector{All: true},
		Output:     f.output,
		ScratchDir: f.scratch,
	}
}

func (f *fixture) assertNoLeftovers(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
	assert.NoFileExists(t, f.output, "partial artifact left behind")
	assert.NoFileExists(t, payload.TempPath(f.output))
}

func readRecords(t *testing.T, path string) []payload.Record {
	t.Helper()
	var out []payload.Record
	require.NoError(t, payload.ReadFile(path, func(r payload.Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func jsRepo() map[string]string {
	return map[string]string{
		"backend/package.json":  `{"name":"backend"}`,
		"package.json":          `{"name":"root"}`,
		"frontend/src/index.ts": "export const x = 1",
		"README.md":             "# Demo",
		"assets/logo.svg":       "<svg/>",
	}
}

func TestRun_JavaScriptScenario(t *testing.T) {
	f := newFixture(t, jsRepo())

	res, err := f.builder(nil).Run(context.Background(), f.request(heuristics.LanguageJavaScript))
	require.NoError(t, err)

	assert.Equal(t, f.output, res.Output)
	assert.Equal(t, []string{"."}, res.Scope)
	assert.Equal(t, 1, res.LanguageFiles)
	assert.Equal(t, 3, res.ContextFiles)
	assert.Equal(t, []string{"frontend/src/index.ts"}, f.ex.listed)

	records := readRecords(t, f.output)
	require.Len(t, records, 4)
	assert.Equal(t, "package.json", records[0].Path)
	assert.Equal(t, `{"name":"root"}`, records[0].Content)
	assert.Equal(t, "backend/package.json", records[1].Path)
	assert.Equal(t, "README.md", records[2].Path)
	for _, r := range records[:3] {
		assert.True(t, r.IsContext())
	}
	assert.Equal(t, payload.Record{Path: "frontend/src/index.ts", Tags: []string{"function main"}}, records[3])

	assert.Equal(t, []State{
		StateScopeResolved,
		StateClassified,
		StateContextPhaseDone,
		StateSymbolPhaseDone,
		StateFinalized,
	}, f.states)

	entries, err := os.ReadDir(f.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_Deterministic(t *testing.T) {
	f := newFixture(t, jsRepo())
	b := f.builder(nil)

	_, err := b.Run(context.Background(), f.request(heuristics.LanguageJavaScript))
	require.NoError(t, err)
	first, err := os.ReadFile(f.output)
	require.NoError(t, err)

	_, err = b.Run(context.Background(), f.request(heuristics.LanguageJavaScript))
	require.NoError(t, err)
	second, err := os.ReadFile(f.output)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestRun_ExplicitScopes(t *testing.T) {
	f := newFixture(t, jsRepo())
	req := f.request(heuristics.LanguageJavaScript)
	req.Selector = nil
	req.Scopes = []string{"backend", "backend/src"}

	res, err := f.builder(nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"backend"}, res.Scope)
	assert.Equal(t, 0, res.LanguageFiles)

	records := readRecords(t, f.output)
	require.Len(t, records, 1)
	assert.Equal(t, "backend/package.json", records[0].Path)
	assert.Empty(t, f.ex.listed, "extractor not started for an empty language bucket")
}

func TestRun_SelectorPicksModule(t *testing.T) {
	f := newFixture(t, jsRepo())
	req := f.request(heuristics.LanguageJavaScript)
	req.Selector = discovery.StaticSelector{Paths: []string{"backend"}}

	res, err := f.builder(nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"backend"}, res.Scope)
}

func TestRun_EmptyInventory(t *testing.T) {
	f := newFixture(t, map[string]string{"main.py": "print(1)"})

	_, err := f.builder(nil).Run(context.Background(), f.request(heuristics.LanguageGo))
	require.ErrorIs(t, err, ErrEmptyInventory)
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, []State{StateFailed}, f.states)
	f.assertNoLeftovers(t)
}

func TestRun_NoSelection(t *testing.T) {
	f := newFixture(t, jsRepo())
	req := f.request(heuristics.LanguageJavaScript)
	req.Selector = discovery.StaticSelector{}

	_, err := f.builder(nil).Run(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoSelection)
	f.assertNoLeftovers(t)
}

func TestRun_Preconditions(t *testing.T) {
	f := newFixture(t, jsRepo())

	_, err := f.builder(nil).Run(context.Background(), f.request(heuristics.Language("Rust")))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	req := f.request(heuristics.LanguageJavaScript)
	req.Dir = t.TempDir()
	_, err = f.builder(nil).Run(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotRepository)

	req.Dir = filepath.Join(f.root, "package.json")
	_, err = f.builder(nil).Run(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestRun_ExtractorStartFailure(t *testing.T) {
	f := newFixture(t, jsRepo())
	f.ex.startErr = errors.New("exec: \"ctags\": executable file not found in $PATH")

	_, err := f.builder(nil).Run(context.Background(), f.request(heuristics.LanguageJavaScript))
	require.Error(t, err)
	assert.True(t, IsResource(err))
	assert.Equal(t, StateFailed, f.states[len(f.states)-1])
	f.assertNoLeftovers(t)
}

func TestRun_ExtractorExitFailure(t *testing.T) {
	f := newFixture(t, jsRepo())
	f.ex.waitErr = errors.New("ctags: exit status 1")

	_, err := f.builder(nil).Run(context.Background(), f.request(heuristics.LanguageJavaScript))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol phase")
	f.assertNoLeftovers(t)
}

func TestRun_FailedRebuildKeepsPreviousArtifact(t *testing.T) {
	f := newFixture(t, jsRepo())
	b := f.builder(nil)

	_, err := b.Run(context.Background(), f.request(heuristics.LanguageJavaScript))
	require.NoError(t, err)
	good, err := os.ReadFile(f.output)
	require.NoError(t, err)

	f.ex.waitErr = errors.New("ctags: exit status 1")
	_, err = b.Run(context.Background(), f.request(heuristics.LanguageJavaScript))
	require.Error(t, err)

	after, err := os.ReadFile(f.output)
	require.NoError(t, err)
	assert.Equal(t, string(good), string(after))
	assert.NoFileExists(t, payload.TempPath(f.output))
}

func TestRun_CancelledBetweenPhases(t *testing.T) {
	f := newFixture(t, jsRepo())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := f.builder(func(s State) {
		if s == StateContextPhaseDone {
			cancel()
		}
	})
	_, err := b.Run(ctx, f.request(heuristics.LanguageJavaScript))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, f.states[len(f.states)-1])
	f.assertNoLeftovers(t)
}

func TestModules(t *testing.T) {
	f := newFixture(t, jsRepo())
	got, err := f.builder(nil).Modules(context.Background(), f.root, heuristics.LanguageJavaScript)
	require.NoError(t, err)
	assert.Equal(t, []string{".", "backend"}, discovery.Paths(got))
}

func TestInsideRoot(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "repo")
	assert.Equal(t, []string{"out/payload.jsonl"}, insideRoot(root, filepath.Join(root, "out", "payload.jsonl")))
	assert.Equal(t, []string{"out/payload.jsonl", "out/payload.jsonl.tmp"},
		insideRoot(root, filepath.Join(root, "out", "payload.jsonl"), filepath.Join(root, "out", "payload.jsonl.tmp")))
	assert.Nil(t, insideRoot(root, filepath.Join(string(filepath.Separator), "tmp", "payload.jsonl")))
	assert.Nil(t, insideRoot(root, filepath.Join(string(filepath.Separator), "repo-other", "x")))
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, canTransition(StateIdle, StateScopeResolved))
	assert.False(t, canTransition(StateIdle, StateClassified))
	assert.True(t, canTransition(StateClassified, StateFailed))
	assert.False(t, canTransition(StateFinalized, StateFailed))
	assert.False(t, canTransition(StateFailed, StateIdle))
	assert.Equal(t, "context_phase_done", StateContextPhaseDone.String())
	assert.Equal(t, "unknown", State(99).String())
}

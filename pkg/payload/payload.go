// Package payload writes the bridge artifact: newline-delimited JSON with
// every context record ahead of every symbol record.
package payload

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gnana997/sential/pkg/util"
)

// DefaultFileName is the artifact name used when no output path is given.
const DefaultFileName = "sential_payload.jsonl"

// ContextType is the type tag of a context record.
const ContextType = "context_file"

var (
	// ErrPhaseOrder is returned when a context record follows a symbol record.
	ErrPhaseOrder = errors.New("context record written after symbol phase began")

	// ErrClosed is returned by writes after Commit or Abort.
	ErrClosed = errors.New("payload writer closed")
)

// TempSuffix is appended to the output path while a build is in progress.
const TempSuffix = ".tmp"

// TempPath returns where the artifact for path is written before Commit.
func TempPath(path string) string {
	return path + TempSuffix
}

// DefaultPath returns the artifact path in the system temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultFileName)
}

// ContextRecord is the full text of one context file.
type ContextRecord struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// SymbolRecord lists the symbols of one source file as "<kind> <name>".
type SymbolRecord struct {
	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

// Counts reports how many records of each kind were written.
type Counts struct {
	Context int `json:"context_records"`
	Symbols int `json:"symbol_records"`
}

// Writer is the single sink of a run. It is safe for concurrent use, though
// a run writes from one goroutine.
type Writer struct {
	mu        sync.Mutex
	path      string
	tmp       string
	f         *os.File
	bw        *bufio.Writer
	enc       *json.Encoder
	symbols   bool
	closed    bool
	committed bool
	counts    Counts
}

// Create starts an artifact for path. Records go to TempPath(path); an
// existing file at path is left alone until Commit replaces it. Parent
// directories are created as needed.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, util.NewResourceError("create output directory", err)
	}
	tmp := TempPath(path)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, util.NewResourceError("create output artifact", err)
	}
	bw := bufio.NewWriterSize(f, 256*1024)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Writer{path: path, tmp: tmp, f: f, bw: bw, enc: enc}, nil
}

// Path returns the artifact path.
func (w *Writer) Path() string {
	return w.path
}

// WriteContext appends a context record.
func (w *Writer) WriteContext(path, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.symbols {
		return ErrPhaseOrder
	}
	if err := w.enc.Encode(ContextRecord{Path: path, Type: ContextType, Content: content}); err != nil {
		return fmt.Errorf("write context record %s: %w", path, err)
	}
	w.counts.Context++
	return nil
}

// WriteSymbols appends a symbol record. The first call closes the context
// phase.
func (w *Writer) WriteSymbols(path string, tags []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.symbols = true
	if err := w.enc.Encode(SymbolRecord{Path: path, Tags: tags}); err != nil {
		return fmt.Errorf("write symbol record %s: %w", path, err)
	}
	w.counts.Symbols++
	return nil
}

// Counts returns the records written so far.
func (w *Writer) Counts() Counts {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts
}

// Commit flushes the artifact and moves it into place.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush artifact: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		return fmt.Errorf("finalize artifact: %w", err)
	}
	w.committed = true
	return nil
}

// Abort discards the records written so far. The file at the output path,
// whether from an earlier build or from this Writer's Commit, is kept.
// Abort may be called more than once.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		w.f.Close()
	}
	if w.committed {
		return nil
	}
	if err := os.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

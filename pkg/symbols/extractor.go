// Package symbols runs an external tag extractor over the language bucket
// and folds its per-symbol output into one record per file.
package symbols

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/gnana997/sential/pkg/util"
)

// ErrCtagsNotFound is returned when no ctags binary can be located.
var ErrCtagsNotFound = errors.New("universal-ctags not found on PATH")

// ctagsNames are tried in order when no explicit binary is configured.
var ctagsNames = []string{"ctags", "universal-ctags", "uctags"}

// CtagsArgs is the fixed ctags command line: JSON output in file order,
// line numbers included, file list read from stdin.
var CtagsArgs = []string{"--output-format=json", "--sort=no", "--fields=+n", "-f", "-", "-L", "-"}

// Stream is the running extractor's output.
type Stream interface {
	io.Reader
	// Wait releases the extractor and reports how it exited. It must be
	// called once the output has been consumed or abandoned.
	Wait() error
}

// Extractor starts a symbol extraction over the paths listed, one per
// line, in listFile. Paths are relative to root.
type Extractor interface {
	Start(ctx context.Context, root, listFile string) (Stream, error)
}

// FindCtags resolves the ctags binary. An explicit path is checked as-is;
// otherwise the usual names are looked up on PATH.
func FindCtags(explicit string) (string, error) {
	if explicit != "" {
		p, err := exec.LookPath(explicit)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrCtagsNotFound, explicit, err)
		}
		return p, nil
	}
	for _, name := range ctagsNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrCtagsNotFound
}

// CtagsExtractor runs Universal Ctags.
type CtagsExtractor struct {
	// Binary is the ctags executable. Empty means FindCtags("") at start.
	Binary string

	Logger *slog.Logger
}

// Start launches ctags with listFile on stdin. Failure to launch is a
// ResourceError.
func (c *CtagsExtractor) Start(ctx context.Context, root, listFile string) (Stream, error) {
	bin, err := FindCtags(c.Binary)
	if err != nil {
		return nil, util.NewResourceError("start ctags", err)
	}

	in, err := os.Open(listFile)
	if err != nil {
		return nil, util.NewResourceError("open language bucket", err)
	}

	cmd := exec.CommandContext(ctx, bin, CtagsArgs...)
	cmd.Dir = root
	cmd.Stdin = in
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		in.Close()
		return nil, util.NewResourceError("start ctags", err)
	}
	if err := cmd.Start(); err != nil {
		in.Close()
		return nil, util.NewResourceError("start ctags", err)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("ctags started", "binary", bin, "pid", cmd.Process.Pid)

	return &cmdStream{Reader: stdout, cmd: cmd, stdin: in, stderr: stderr}, nil
}

type cmdStream struct {
	io.Reader
	cmd    *exec.Cmd
	stdin  *os.File
	stderr *tailBuffer
	once   sync.Once
	err    error
}

func (s *cmdStream) Wait() error {
	s.once.Do(func() {
		// Drain so the process is not blocked writing when we wait on it.
		_, _ = io.Copy(io.Discard, s.Reader)
		err := s.cmd.Wait()
		s.stdin.Close()
		if err != nil {
			msg := strings.TrimSpace(s.stderr.String())
			if msg != "" {
				err = fmt.Errorf("ctags: %w: %s", err, msg)
			} else {
				err = fmt.Errorf("ctags: %w", err)
			}
		}
		s.err = err
	})
	return s.err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

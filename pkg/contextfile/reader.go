// Package contextfile reads high-value text files and emits them, in a
// fixed priority order, as context records.
package contextfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gnana997/sential/pkg/util"
)

// Content caps, in characters.
const (
	Tier1Cap = 100_000
	Tier2Cap = 50_000
)

// binaryProbeBytes is how much of a file is inspected for NUL bytes and
// UTF-8 validity.
const binaryProbeBytes = 1024

var (
	// ErrBinary marks a file whose head contains a NUL byte or is not UTF-8.
	ErrBinary = errors.New("binary content")

	// ErrEmpty marks a file with no decodable text.
	ErrEmpty = errors.New("empty content")
)

// TruncationNotice is appended to content cut at limit characters.
func TruncationNotice(limit int) string {
	return fmt.Sprintf("\n\n... [TRUNCATED BY SENTIAL: File exceeded %d chars] ...", limit)
}

// Content is one decoded file.
type Content struct {
	Text      string
	Truncated bool
}

// Reader loads files relative to a repository root, never reading more
// than the cap allows.
type Reader struct {
	root  string
	cache *util.FileCache
}

// NewReader creates a Reader. cache may be nil.
func NewReader(root string, cache *util.FileCache) *Reader {
	return &Reader{root: root, cache: cache}
}

// Read decodes the file at the repository-relative path p, keeping at most
// limit characters.
//
// The first read takes limit+1 bytes, which is enough for ASCII text to tell
// whether the file exceeds the cap. While the window ends before the file
// does and still holds fewer than limit+1 characters (multi-byte runes, or
// invalid bytes past the probe window, which are dropped), it doubles.
func (r *Reader) Read(p string, limit int) (Content, error) {
	if limit <= 0 {
		return Content{}, fmt.Errorf("invalid cap %d", limit)
	}
	abs := filepath.Join(r.root, filepath.FromSlash(p))

	window := max(int64(limit)+1, binaryProbeBytes+utf8.UTFMax)
	for {
		raw, err := r.readPrefix(abs, window)
		if err != nil {
			return Content{}, err
		}
		c, err := Decode(raw, limit)
		eof := int64(len(raw)) < window
		if errors.Is(err, ErrBinary) || c.Truncated || eof {
			return c, err
		}
		window *= 2
	}
}

func (r *Reader) readPrefix(abs string, n int64) ([]byte, error) {
	if r.cache != nil {
		return r.cache.ReadPrefix(abs, n)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", abs)
	}
	return io.ReadAll(io.LimitReader(f, n))
}

// Decode applies the text policy to raw bytes from the start of a file.
func Decode(raw []byte, limit int) (Content, error) {
	if IsBinary(raw) {
		return Content{}, ErrBinary
	}

	var b strings.Builder
	b.Grow(min(len(raw), limit*utf8.UTFMax))

	count := 0
	truncated := false
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if count == limit {
			truncated = true
			break
		}
		b.WriteRune(r)
		count++
	}

	if count == 0 {
		return Content{}, ErrEmpty
	}
	if truncated {
		b.WriteString(TruncationNotice(limit))
	}
	return Content{Text: b.String(), Truncated: truncated}, nil
}

// IsBinary reports whether the head of raw looks like binary data: a NUL
// byte, or bytes that are not UTF-8. A rune cut by the probe window is not
// counted against the file.
func IsBinary(raw []byte) bool {
	probe := raw
	if len(probe) > binaryProbeBytes {
		probe = probe[:binaryProbeBytes]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return true
	}
	if len(raw) > binaryProbeBytes {
		probe = trimPartialRune(probe)
	}
	return !utf8.Valid(probe)
}

// trimPartialRune drops an incomplete multi-byte sequence at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

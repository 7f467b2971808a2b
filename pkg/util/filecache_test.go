// Tests for FileCache with mmap-based file access.
package util

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/edsrzf/mmap-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestFiles creates temporary test files for testing.
func setupTestFiles(t *testing.T) map[string]string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"Dockerfile":   "FROM golang:1.24\nRUN go build ./...\n",
		"package.json": `{"name": "demo", "version": "1.0.0"}`,
		"unicode.md":   "# héllo 你好 👋\n",
		"empty.txt":    "",
		"large.txt":    strings.Repeat("# comment line\n", 1000),
	}
	paths := make(map[string]string, len(files))
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		paths[name] = p
	}
	return paths
}

func newTestCache(t *testing.T, cfg *FileCacheConfig) *FileCache {
	t.Helper()
	if cfg == nil {
		cfg = DefaultFileCacheConfig()
	}
	cfg.Logger = Discard()
	fc, err := NewFileCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { fc.Close() })
	return fc
}

func TestFileCache_ReadPrefix(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, nil)

	data, err := fc.ReadPrefix(files["Dockerfile"], -1)
	require.NoError(t, err)
	assert.Equal(t, "FROM golang:1.24\nRUN go build ./...\n", string(data))

	head, err := fc.ReadPrefix(files["Dockerfile"], 4)
	require.NoError(t, err)
	assert.Equal(t, "FROM", string(head))

	// Limit past EOF returns the whole file.
	all, err := fc.ReadPrefix(files["package.json"], 1<<20)
	require.NoError(t, err)
	assert.Equal(t, `{"name": "demo", "version": "1.0.0"}`, string(all))

	stats := fc.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, 2, stats.FilesCached)
}

func TestFileCache_EmptyFile(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, nil)

	data, err := fc.ReadPrefix(files["empty.txt"], 100)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, 0, fc.Size(), "empty files are never mapped")
}

func TestFileCache_ReturnsCopy(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, nil)

	first, err := fc.ReadPrefix(files["Dockerfile"], -1)
	require.NoError(t, err)
	first[0] = 'X'

	second, err := fc.ReadPrefix(files["Dockerfile"], -1)
	require.NoError(t, err)
	assert.Equal(t, byte('F'), second[0])
}

func TestFileCache_InvalidatesChangedFile(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, nil)

	_, err := fc.ReadPrefix(files["package.json"], -1)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(files["package.json"], []byte(`{"name": "renamed-package"}`+"\n"), 0644))

	data, err := fc.ReadPrefix(files["package.json"], -1)
	require.NoError(t, err)
	assert.Equal(t, `{"name": "renamed-package"}`+"\n", string(data))
	assert.Equal(t, int64(1), fc.Stats().Invalidated)
}

func TestFileCache_LRUEviction(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, &FileCacheConfig{MaxFiles: 2})

	for _, name := range []string{"Dockerfile", "package.json", "unicode.md"} {
		_, err := fc.ReadPrefix(files[name], -1)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, fc.Size())
	assert.Equal(t, int64(1), fc.Stats().Evictions)

	// The evicted file is still readable; it is simply mapped again.
	data, err := fc.ReadPrefix(files["Dockerfile"], 4)
	require.NoError(t, err)
	assert.Equal(t, "FROM", string(data))
}

func TestFileCache_DirectReadAboveMapLimit(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, &FileCacheConfig{MaxFiles: 4, MaxMapBytes: 1024})

	data, err := fc.ReadPrefix(files["large.txt"], 15)
	require.NoError(t, err)
	assert.Equal(t, "# comment line\n", string(data))
	assert.Equal(t, 0, fc.Size())
	assert.Equal(t, int64(1), fc.Stats().DirectReads)
}

func TestFileCache_Errors(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, nil)

	_, err := fc.ReadPrefix(filepath.Join(filepath.Dir(files["Dockerfile"]), "missing"), -1)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = fc.ReadPrefix(filepath.Dir(files["Dockerfile"]), -1)
	assert.Error(t, err)

	_, err = NewFileCache(&FileCacheConfig{MaxFiles: 0})
	assert.Error(t, err)
}

func TestFileCache_Concurrent(t *testing.T) {
	files := setupTestFiles(t)
	fc := newTestCache(t, &FileCacheConfig{MaxFiles: 2})

	names := []string{"Dockerfile", "package.json", "unicode.md", "large.txt"}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := names[i%len(names)]
			data, err := fc.ReadPrefix(files[name], 8)
			assert.NoError(t, err)
			assert.Len(t, data, 8)
		}(i)
	}
	wg.Wait()
}

func TestCopyMapped_TruncatedFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mapped files cannot be truncated on windows")
	}
	path := filepath.Join(t.TempDir(), "shrinking.md")
	content := strings.Repeat("x", 3*os.Getpagesize())
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	require.NoError(t, err)
	defer m.Unmap()

	out := make([]byte, len(m))
	require.NoError(t, copyMapped(out, m))
	assert.Equal(t, content, string(out))

	require.NoError(t, os.Truncate(path, 0))
	err = copyMapped(out, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fault")
}

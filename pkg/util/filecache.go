// FileCache provides bounded, memory-mapped access to the head of a file.
//
// Context emission only ever needs the first few hundred kilobytes of a
// file, and watch mode re-reads the same files on every rebuild. The cache
// keeps recently read files mapped so an unchanged file is served without a
// syscall round trip, and revalidates each entry against the file's size and
// modification time so an edited file is never served stale.
//
// **Safety Features:**
//   - LRU bound on mapped files (evicted entries are unmapped and closed)
//   - Files larger than MaxMapBytes are read with ReadAt instead of mapped
//   - Graceful fallback to ReadAt if mmap fails
//   - Callers always receive a copy, never a view of the mapping
//   - A file truncated between the stat and the copy faults into a direct
//     read instead of crashing the process
package util

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru/v2"
)

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles is the number of mapped files kept before the least recently
	// used one is unmapped. Must be positive.
	MaxFiles int

	// MaxMapBytes is the largest file that is mapped. Larger files are read
	// directly each time. Zero means no limit.
	MaxMapBytes int64

	// Logger for warnings. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig returns defaults suited to context emission.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:    512,
		MaxMapBytes: 64 << 20,
	}
}

// MappedFile is one cached mapping.
type MappedFile struct {
	Path    string
	Data    mmap.MMap
	File    *os.File
	Size    int64
	ModTime time.Time

	MappedAt time.Time
}

func (mf *MappedFile) release() error {
	var errs []error
	if mf.Data != nil {
		if err := mf.Data.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap %q: %w", mf.Path, err))
		}
		mf.Data = nil
	}
	if mf.File != nil {
		if err := mf.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", mf.Path, err))
		}
		mf.File = nil
	}
	return errors.Join(errs...)
}

// FileCacheStats tracks cache performance metrics.
type FileCacheStats struct {
	CacheHits    int64
	CacheMisses  int64
	Invalidated  int64 // entries dropped because the file changed on disk
	Evictions    int64
	MmapFailures int64
	DirectReads  int64 // reads that bypassed the mapping
	Faults       int64 // mapped reads that hit a truncated file
	FilesCached  int
}

// FileCache is safe for concurrent use.
type FileCache struct {
	config *FileCacheConfig
	logger *slog.Logger

	mu    sync.Mutex
	files *lru.Cache[string, *MappedFile]

	stats FileCacheStats
}

// NewFileCache creates a FileCache. If config is nil, uses
// DefaultFileCacheConfig().
func NewFileCache(config *FileCacheConfig) (*FileCache, error) {
	if config == nil {
		config = DefaultFileCacheConfig()
	}
	if config.MaxFiles <= 0 {
		return nil, fmt.Errorf("file cache: MaxFiles must be positive, got %d", config.MaxFiles)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fc := &FileCache{config: config, logger: logger}
	files, err := lru.NewWithEvict[string, *MappedFile](config.MaxFiles, fc.onEvict)
	if err != nil {
		return nil, fmt.Errorf("file cache: %w", err)
	}
	fc.files = files
	return fc, nil
}

// onEvict runs with fc.mu held: every Add/Remove/Purge happens under it.
func (fc *FileCache) onEvict(path string, mf *MappedFile) {
	fc.stats.Evictions++
	if err := mf.release(); err != nil {
		fc.logger.Warn("failed to release mapped file", "path", path, "error", err)
	}
}

// ReadPrefix returns a copy of at most limit bytes from the start of the
// file at path. A negative limit reads the whole file.
func (fc *FileCache) ReadPrefix(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	if info.Size() == 0 {
		return []byte{}, nil
	}

	if fc.config.MaxMapBytes > 0 && info.Size() > fc.config.MaxMapBytes {
		fc.mu.Lock()
		fc.stats.DirectReads++
		fc.mu.Unlock()
		return readAtPrefix(path, limit)
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	mf, ok := fc.files.Get(path)
	if ok && (mf.Size != info.Size() || !mf.ModTime.Equal(info.ModTime())) {
		fc.stats.Invalidated++
		fc.files.Remove(path)
		ok = false
	}
	if ok {
		fc.stats.CacheHits++
	} else {
		fc.stats.CacheMisses++
		mf, err = fc.load(path)
		if err != nil {
			return nil, err
		}
		if mf == nil {
			fc.stats.MmapFailures++
			fc.stats.DirectReads++
			return readAtPrefix(path, limit)
		}
		fc.files.Add(path, mf)
	}

	n := int64(len(mf.Data))
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]byte, n)
	if err := copyMapped(out, mf.Data[:n]); err != nil {
		// The file shrank after the stat above; its mapping is unusable.
		fc.stats.Faults++
		fc.stats.DirectReads++
		fc.logger.Debug("mapped read faulted, reading directly", "file", path, "error", err)
		fc.files.Remove(path)
		return readAtPrefix(path, limit)
	}
	return out, nil
}

// copyMapped copies from a mapping, turning the SIGBUS raised by pages past
// the end of a truncated file into an error.
func copyMapped(dst, src []byte) (err error) {
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = fmt.Errorf("fault reading mapped file: %v", r)
		}
	}()
	copy(dst, src)
	return nil
}

// load maps path. A nil MappedFile with nil error means mapping failed and
// the caller should fall back to a direct read.
func (fc *FileCache) load(path string) (*MappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %q: %w", path, err)
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		fc.logger.Warn("mmap failed, using fallback", "file", path, "size", stat.Size(), "error", err)
		file.Close()
		return nil, nil
	}

	return &MappedFile{
		Path:     path,
		Data:     data,
		File:     file,
		Size:     stat.Size(),
		ModTime:  stat.ModTime(),
		MappedAt: time.Now(),
	}, nil
}

func readAtPrefix(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if limit < 0 {
		return io.ReadAll(f)
	}
	return io.ReadAll(io.LimitReader(f, limit))
}

// Size returns the number of currently mapped files.
func (fc *FileCache) Size() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.files.Len()
}

// Stats returns current cache metrics.
func (fc *FileCache) Stats() FileCacheStats {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	s := fc.stats
	s.FilesCached = fc.files.Len()
	return s
}

// Close unmaps every cached file.
func (fc *FileCache) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.files.Purge()
	fc.logger.Debug("file cache closed",
		"cache_hits", fc.stats.CacheHits,
		"cache_misses", fc.stats.CacheMisses,
		"evictions", fc.stats.Evictions,
		"mmap_failures", fc.stats.MmapFailures)
	return nil
}

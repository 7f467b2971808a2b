package repo

import (
	"path"
	"path/filepath"
	"strings"
)

// Root is the repository-relative path of the repository root.
const Root = "."

// Normalize converts p to a clean, forward-slash, repository-relative path.
// The root normalizes to ".".
func Normalize(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	if p == "" {
		return Root
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	if p == "" {
		return Root
	}
	return p
}

// Depth is the number of path segments in p. The root has depth 0, a
// top-level file or directory depth 1.
func Depth(p string) int {
	p = Normalize(p)
	if p == Root {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// Dir returns the parent directory of p, "." for top-level entries.
func Dir(p string) string {
	return path.Dir(Normalize(p))
}

// Base returns the final segment of p.
func Base(p string) string {
	return path.Base(Normalize(p))
}

// Covers reports whether p is ancestor itself or lies beneath it.
// The root covers every path.
func Covers(ancestor, p string) bool {
	ancestor = Normalize(ancestor)
	p = Normalize(p)
	if ancestor == Root || ancestor == p {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	sub := filepath.Join(root, "services", "api")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	r, err := Open(sub)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(r.Root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Empty(t, r.Head, "fresh repository has no commits")
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err := Open(file)
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = Open(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = Open(dir)
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestShortHead(t *testing.T) {
	r := &Repository{Head: "0123456789abcdef0123"}
	assert.Equal(t, "0123456789ab", r.ShortHead())
	assert.Equal(t, "", (&Repository{}).ShortHead())
}

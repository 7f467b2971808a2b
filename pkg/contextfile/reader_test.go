package contextfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/sential/pkg/util"
)

func TestDecode_Plain(t *testing.T) {
	c, err := Decode([]byte("FROM alpine\n"), Tier1Cap)
	require.NoError(t, err)
	assert.Equal(t, "FROM alpine\n", c.Text)
	assert.False(t, c.Truncated)
}

func TestDecode_TruncatesAtCap(t *testing.T) {
	for _, limit := range []int{Tier1Cap, Tier2Cap, 10} {
		raw := []byte(strings.Repeat("é", limit+500))
		c, err := Decode(raw, limit)
		require.NoError(t, err)
		require.True(t, c.Truncated)

		notice := TruncationNotice(limit)
		require.True(t, strings.HasSuffix(c.Text, notice))
		body := strings.TrimSuffix(c.Text, notice)
		assert.Equal(t, limit, utf8.RuneCountInString(body))
		assert.Contains(t, notice, "File exceeded")
	}
}

func TestDecode_ExactlyCapIsNotTruncated(t *testing.T) {
	c, err := Decode([]byte(strings.Repeat("a", 10)), 10)
	require.NoError(t, err)
	assert.False(t, c.Truncated)
	assert.Equal(t, strings.Repeat("a", 10), c.Text)
}

func TestDecode_Binary(t *testing.T) {
	_, err := Decode([]byte("PK\x03\x04\x00\x00"), Tier1Cap)
	assert.ErrorIs(t, err, ErrBinary)

	_, err = Decode([]byte{0xff, 0xfe, 'a', 'b'}, Tier1Cap)
	assert.ErrorIs(t, err, ErrBinary)
}

func TestDecode_NULAfterProbeIsText(t *testing.T) {
	raw := append([]byte(strings.Repeat("x", binaryProbeBytes)), 0, 'y')
	c, err := Decode(raw, Tier1Cap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Text, "xxx"))
}

func TestDecode_InvalidBytesAfterProbeDropped(t *testing.T) {
	raw := append([]byte(strings.Repeat("x", binaryProbeBytes)), 0xff, 'y')
	c, err := Decode(raw, Tier1Cap)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", binaryProbeBytes)+"y", c.Text)
}

func TestIsBinary_RuneAcrossProbeBoundary(t *testing.T) {
	// "é" is two bytes; put its first byte at offset 1023.
	raw := []byte(strings.Repeat("x", binaryProbeBytes-1) + "é" + "tail")
	assert.False(t, IsBinary(raw))

	c, err := Decode(raw, Tier1Cap)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(c.Text, "étail"))
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(nil, Tier1Cap)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReader_Read(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backend", "package.json"), []byte(`{"name":"api"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.md"), []byte(strings.Repeat("z", 200)), 0o644))

	cache, err := util.NewFileCache(&util.FileCacheConfig{MaxFiles: 4, Logger: util.Discard()})
	require.NoError(t, err)
	defer cache.Close()

	for name, r := range map[string]*Reader{"direct": NewReader(root, nil), "cached": NewReader(root, cache)} {
		t.Run(name, func(t *testing.T) {
			c, err := r.Read("backend/package.json", Tier1Cap)
			require.NoError(t, err)
			assert.Equal(t, `{"name":"api"}`, c.Text)

			c, err = r.Read("big.md", 50)
			require.NoError(t, err)
			assert.Equal(t, strings.Repeat("z", 50)+TruncationNotice(50), c.Text)

			_, err = r.Read("missing.md", Tier1Cap)
			assert.ErrorIs(t, err, os.ErrNotExist)

			_, err = r.Read("backend", Tier1Cap)
			assert.Error(t, err)
		})
	}
}

func TestReader_ReadPastInvalidBytes(t *testing.T) {
	root := t.TempDir()
	var content []byte
	content = append(content, strings.Repeat("a", binaryProbeBytes)...)
	content = append(content, bytes.Repeat([]byte{0xff}, 7000)...)
	content = append(content, strings.Repeat("b", 5000)...)
	require.NoError(t, os.WriteFile(filepath.Join(root, "NOTES.md"), content, 0o644))

	cache, err := util.NewFileCache(&util.FileCacheConfig{MaxFiles: 4, Logger: util.Discard()})
	require.NoError(t, err)
	defer cache.Close()

	want := strings.Repeat("a", binaryProbeBytes) + strings.Repeat("b", 2000-binaryProbeBytes) + TruncationNotice(2000)
	for name, r := range map[string]*Reader{"direct": NewReader(root, nil), "cached": NewReader(root, cache)} {
		t.Run(name, func(t *testing.T) {
			c, err := r.Read("NOTES.md", 2000)
			require.NoError(t, err)
			assert.True(t, c.Truncated)
			assert.Equal(t, want, c.Text)
		})
	}
}

func TestReader_ReadMultiByteAtCap(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte(strings.Repeat("日本", 3000)), 0o644))

	c, err := NewReader(root, nil).Read("README.md", 5000)
	require.NoError(t, err)
	assert.True(t, c.Truncated)
	assert.Equal(t, 5000, utf8.RuneCountInString(strings.TrimSuffix(c.Text, TruncationNotice(5000))))

	c, err = NewReader(root, nil).Read("README.md", 6000)
	require.NoError(t, err)
	assert.False(t, c.Truncated)
	assert.Equal(t, strings.Repeat("日本", 3000), c.Text)
}

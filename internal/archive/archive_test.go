package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	got := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		got[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	files := map[string]string{
		"main.py":            "print('hello')\n",
		"data/values.csv":    "a,b\n1,2\n",
		"data/nested/x.bin":  string([]byte{0, 1, 2, 255}),
		"empty.txt":          "",
		"deep/a/b/c/leaf.md": "# leaf\n",
	}

	src := t.TempDir()
	writeTree(t, src, files)

	var buf bytes.Buffer
	require.NoError(t, Pack(&buf, src))

	dst := t.TempDir()
	require.NoError(t, Unpack(&buf, dst))

	assert.Equal(t, files, readTree(t, dst), "upload(download(x)) must reproduce x byte-for-byte")
}

func TestPack_EmptyDirectoryEntries(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "only/dirs"), 0o755))

	var buf bytes.Buffer
	require.NoError(t, Pack(&buf, src))

	dst := t.TempDir()
	require.NoError(t, Unpack(&buf, dst))

	info, err := os.Stat(filepath.Join(dst, "only", "dirs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestUnpack_RejectsEscapingPaths(t *testing.T) {
	// Build a malicious archive by packing a normal tree and
	// rewriting is too fiddly; construct the header directly instead.
	var buf bytes.Buffer
	require.NoError(t, packEntry(&buf, "../escape.txt", "nope"))

	err := Unpack(&buf, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func packEntry(buf *bytes.Buffer, name, content string) error {
	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(content)),
	}); err != nil {
		return err
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func TestUnpack_CorruptStream(t *testing.T) {
	err := Unpack(bytes.NewReader([]byte("not a gzip stream")), t.TempDir())
	require.Error(t, err)
}

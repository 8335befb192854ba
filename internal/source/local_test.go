package source

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/registry-manager/internal/sandbox"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestLocalSourceGetFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"MangaDex/index.js": "export {}"})

	l := NewLocalSource("org/ext", dir)
	f, err := l.GetFile(context.Background(), "org/ext", "MangaDex/index.js", "gh-pages")
	require.NoError(t, err)

	assert.Equal(t, "MangaDex/index.js", f.Path)
	assert.Equal(t, "index.js", f.Name)
	assert.Equal(t, TypeFile, f.Type)

	raw, err := base64.StdEncoding.DecodeString(f.Content)
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(raw))
}

func TestLocalSourceGetFileOnDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"MangaDex/static/icon.png": "png"})

	l := NewLocalSource("org/ext", dir)
	_, err := l.GetFile(context.Background(), "org/ext", "MangaDex/static", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestLocalSourceListDir(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"MangaDex/static/icon.png":    "png",
		"MangaDex/static/banner.png":  "png",
		"MangaDex/static/nested/a.md": "a",
	})

	l := NewLocalSource("org/ext", dir)
	entries, err := l.ListDir(context.Background(), "org/ext", "MangaDex/static", "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "MangaDex/static/banner.png", entries[0].Path)
	assert.Equal(t, TypeFile, entries[0].Type)
	assert.Equal(t, "MangaDex/static/icon.png", entries[1].Path)
	assert.Equal(t, "MangaDex/static/nested", entries[2].Path)
	assert.Equal(t, TypeDir, entries[2].Type)
}

func TestLocalSourceMissing(t *testing.T) {
	l := NewLocalSource("org/ext", t.TempDir())

	_, err := l.ListDir(context.Background(), "org/ext", "Nope/static", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = l.GetFile(context.Background(), "other/repo", "versioning.json", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no local directory configured")
}

func TestLocalSourceRejectsEscape(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "repo")
	writeTree(t, parent, map[string]string{"secret.txt": "x", "repo/ok.txt": "y"})

	l := NewLocalSource("org/ext", root)
	_, err := l.GetFile(context.Background(), "org/ext", "../secret.txt", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrEscape)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestLocalSourceAdd(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeTree(t, b, map[string]string{"versioning.json": "{}"})

	l := &LocalSource{}
	l.Add("org/a", a)
	l.Add("org/b", b)

	_, err := l.GetFile(context.Background(), "org/b", "versioning.json", "")
	assert.NoError(t, err)
}

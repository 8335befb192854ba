package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bianoble/registry-manager/internal/sandbox"
)

// LocalSource serves repository contents from directories on disk, one
// directory per repository. Refs are ignored. It is read-only.
type LocalSource struct {
	// Roots maps a repository name to its checked-out directory.
	Roots map[string]string
}

var _ ContentFetcher = (*LocalSource)(nil)

// NewLocalSource returns a LocalSource serving a single repository.
func NewLocalSource(repo, dir string) *LocalSource {
	return &LocalSource{Roots: map[string]string{repo: dir}}
}

// Add registers another repository directory.
func (l *LocalSource) Add(repo, dir string) {
	if l.Roots == nil {
		l.Roots = make(map[string]string)
	}
	l.Roots[repo] = dir
}

func (l *LocalSource) GetFile(ctx context.Context, repo, relPath, ref string) (*File, error) {
	abs, err := l.resolve(repo, relPath, "get file")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &SourceError{Source: repo, Operation: "get file", Err: fmt.Errorf("stat %s: %w", relPath, err), Hint: "check that the path exists"}
	}
	if info.IsDir() {
		return nil, &SourceError{Source: repo, Operation: "get file", Err: fmt.Errorf("%s is a directory, expected a single file", relPath)}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SourceError{Source: repo, Operation: "get file", Err: fmt.Errorf("reading %s: %w", relPath, err)}
	}

	clean := path.Clean(filepath.ToSlash(relPath))
	return &File{
		Type:     TypeFile,
		Encoding: "base64",
		Size:     int64(len(data)),
		Name:     path.Base(clean),
		Path:     clean,
		Content:  base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (l *LocalSource) ListDir(ctx context.Context, repo, relPath, ref string) ([]Entry, error) {
	abs, err := l.resolve(repo, relPath, "list directory")
	if err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, &SourceError{Source: repo, Operation: "list directory", Err: fmt.Errorf("reading %s: %w", relPath, err), Hint: "check that the directory exists"}
	}

	clean := path.Clean(filepath.ToSlash(relPath))
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		e := Entry{Name: d.Name(), Path: path.Join(clean, d.Name()), Type: TypeFile}
		if d.IsDir() {
			e.Type = TypeDir
		} else if info, infoErr := d.Info(); infoErr == nil {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// resolve maps a repository path onto disk, refusing paths that escape the
// repository directory.
func (l *LocalSource) resolve(repo, relPath, op string) (string, error) {
	root, ok := l.Roots[repo]
	if !ok {
		return "", &SourceError{Source: repo, Operation: op, Err: fmt.Errorf("no local directory configured for repository '%s'", repo)}
	}

	resolved, err := sandbox.Resolve(root, relPath)
	if err != nil {
		return "", &SourceError{Source: repo, Operation: op, Err: err}
	}
	return resolved, nil
}

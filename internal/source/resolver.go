// Package source talks to the places manifests and extension files live:
// the hosting API (GitHub) for real runs and plain directories for offline
// runs.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport marks failures to reach or understand a content source.
var ErrTransport = errors.New("transport failure")

// Entry types reported by directory listings.
const (
	TypeFile = "file"
	TypeDir  = "dir"
)

// Tree entry constants for regular files.
const (
	ModeFile = "100644"
	TypeBlob = "blob"
)

// File is a single file returned by the contents endpoint. Content is
// base64, possibly line-wrapped.
type File struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

// Entry is one item of a directory listing.
type Entry struct {
	Type string `json:"type"`
	Size int64  `json:"size"`
	Name string `json:"name"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
}

// TreeEntry is a file to place into a new tree. Content is the raw file
// content.
type TreeEntry struct {
	Path    string
	Mode    string
	Type    string
	Content []byte
}

// Tree is a tree object as returned by the hosting API.
type Tree struct {
	SHA       string          `json:"sha"`
	URL       string          `json:"url"`
	Truncated bool            `json:"truncated"`
	Entries   []TreeEntryInfo `json:"tree"`
}

// TreeEntryInfo describes an existing entry of a tree.
type TreeEntryInfo struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size *int64 `json:"size,omitempty"`
}

// ContentFetcher reads files and directory listings from a repository.
type ContentFetcher interface {
	// GetFile returns the file at path. A directory at path is an error.
	GetFile(ctx context.Context, repo, path, ref string) (*File, error)

	// ListDir returns the entries of the directory at path.
	ListDir(ctx context.Context, repo, path, ref string) ([]Entry, error)
}

// TreeWriter reads and creates tree objects.
type TreeWriter interface {
	GetTree(ctx context.Context, repo, ref string) (*Tree, error)
	CreateTree(ctx context.Context, repo, baseTree string, entries []TreeEntry) (*Tree, error)
}

// Committer creates commits and moves branch heads.
type Committer interface {
	GetRef(ctx context.Context, repo, branch string) (string, error)
	CreateCommit(ctx context.Context, repo, message, tree string, parents []string) (string, error)
	UpdateRef(ctx context.Context, repo, branch, sha string) error
}

// SourceError represents an error associated with a specific source operation.
type SourceError struct {
	Source    string
	Operation string
	Err       error
	Hint      string
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %s", e.Source, e.Operation, e.Err)
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is makes every SourceError match ErrTransport.
func (e *SourceError) Is(target error) bool {
	return target == ErrTransport
}

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient returns an HTTPClient using http.DefaultClient.
type DefaultHTTPClient struct{}

func (DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req)
}

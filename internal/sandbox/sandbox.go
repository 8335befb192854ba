// Package sandbox keeps file access inside a root directory and keeps tree
// paths inside the repository they are written to.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrEscape is returned for paths that leave their root.
var ErrEscape = errors.New("path escapes root")

// Resolve checks that relPath stays within root once symlinks are resolved
// and returns the resolved absolute path. relPath need not exist.
func Resolve(root, relPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving root symlinks: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, filepath.FromSlash(relPath)))
	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	// Trailing separator so "root2" does not match "root".
	rootPrefix := realRoot + string(filepath.Separator)
	if resolved != realRoot && !strings.HasPrefix(resolved, rootPrefix) {
		return "", fmt.Errorf("%w: '%s' resolves to '%s' which is outside the root '%s'", ErrEscape, relPath, resolved, realRoot)
	}
	return resolved, nil
}

// resolveExistingPath resolves symlinks for the longest existing prefix of p
// and appends the rest.
func resolveExistingPath(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(p)
	if dir == p {
		return p, nil
	}
	resolvedDir, err := resolveExistingPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(p)), nil
}

// CheckTreePath validates a slash-separated repository path used as a tree
// entry: relative, clean, and not climbing out of the repository.
func CheckTreePath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("%w: empty path", ErrEscape)
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("%w: '%s' is absolute", ErrEscape, p)
	case strings.Contains(p, "\\"):
		return fmt.Errorf("%w: '%s' contains a backslash", ErrEscape, p)
	case path.Clean(p) != p:
		return fmt.Errorf("%w: '%s' is not a clean path", ErrEscape, p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("%w: '%s' climbs out of the repository", ErrEscape, p)
	}
	return nil
}

// WriteFile atomically writes content to relPath inside root, creating
// parent directories as needed.
func WriteFile(root, relPath string, content []byte, perm os.FileMode) error {
	resolved, err := Resolve(root, relPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, ".registry-manager-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, resolved); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", resolved, err)
	}

	success = true
	return nil
}

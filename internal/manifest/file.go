package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bianoble/registry-manager/internal/sandbox"
)

// LoadFile reads a raw JSON manifest from disk.
func LoadFile(path string, opts ...DecodeOption) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	m, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// SaveFile writes m as indented JSON, atomically replacing any existing file.
func SaveFile(path string, m *Manifest) error {
	if m == nil {
		return fmt.Errorf("%w: nil manifest", ErrEncode)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	data = append(data, '\n')

	if err := sandbox.WriteFile(filepath.Dir(path), filepath.Base(path), data, 0644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

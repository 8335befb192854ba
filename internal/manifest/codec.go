// Package manifest decodes, validates and encodes registry versioning
// manifests.
//
// Manifests travel base64-encoded because that is how the hosting API's
// contents endpoint returns files. Decode and Encode convert between that
// transport form and the in-memory Manifest; Parse and Marshal are the raw
// JSON halves used for files on disk.
package manifest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecode is returned when content is not a structurally valid manifest.
	ErrDecode = errors.New("manifest decode failed")

	// ErrEncode is returned when a manifest cannot be serialized.
	ErrEncode = errors.New("manifest encode failed")

	// ErrDuplicateID is returned when unique ids are required and an id repeats.
	ErrDuplicateID = errors.New("duplicate extension id")
)

type decodeOptions struct {
	uniqueIDs bool
}

// DecodeOption tunes Decode and Parse.
type DecodeOption func(*decodeOptions)

// WithUniqueIDs rejects manifests whose sources repeat an id.
func WithUniqueIDs() DecodeOption {
	return func(o *decodeOptions) { o.uniqueIDs = true }
}

// Decode converts transport content (base64 of JSON, possibly line-wrapped)
// into a Manifest.
func Decode(content string, opts ...DecodeOption) (*Manifest, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(content)

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrDecode, err)
	}
	return Parse(raw, opts...)
}

// Parse decodes raw JSON into a Manifest and validates its structure.
func Parse(data []byte, opts ...DecodeOption) (*Manifest, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrDecode, err)
	}

	if errs := CheckFields(data); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	if errs := Validate(&m); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	if o.uniqueIDs {
		if err := CheckUniqueIDs(&m); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

// Encode serializes m to JSON and base64-encodes it.
func Encode(m *Manifest) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Marshal serializes m to compact JSON.
func Marshal(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil manifest", ErrEncode)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// CheckUniqueIDs returns an error wrapping ErrDuplicateID for the first id
// that appears twice in m.Sources.
func CheckUniqueIDs(m *Manifest) error {
	seen := make(map[string]int, len(m.Sources))
	for i, ext := range m.Sources {
		if first, ok := seen[ext.ID]; ok {
			return fmt.Errorf("%w: '%s' at sources[%d] and sources[%d]", ErrDuplicateID, ext.ID, first, i)
		}
		seen[ext.ID] = i
	}
	return nil
}

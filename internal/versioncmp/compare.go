// Package versioncmp compares semantic version strings found in manifests.
//
// Manifests are produced by external toolchains and occasionally carry
// versions that do not parse. A Policy states, per side of a comparison,
// which version an unparsable string stands in for, or that parse failure
// is an error.
package versioncmp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is returned when a version does not parse and the
// policy has no fallback for that side.
var ErrInvalidVersion = errors.New("invalid semantic version")

// InvalidVersionError describes a version string that failed to parse.
type InvalidVersionError struct {
	Value string
	Err   error
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("%s '%s': %s", ErrInvalidVersion, e.Value, e.Err)
}

func (e *InvalidVersionError) Unwrap() error { return e.Err }

func (e *InvalidVersionError) Is(target error) bool { return target == ErrInvalidVersion }

// Policy holds the fallback versions for the left and right operand of a
// comparison. An empty fallback makes a parse failure on that side an error.
type Policy struct {
	Left  string
	Right string
}

var (
	// Toolchain compares the registry's required types version (left)
	// against the repository's (right).
	Toolchain = Policy{Left: "0.9.0", Right: "0.0.0"}

	// Extension compares a repository extension version (left) against the
	// registry's published version (right). Malformed registry data is an
	// error rather than silently treated as old.
	Extension = Policy{Left: "0.0.0"}
)

// Parse parses s as a strict major.minor.patch semantic version. Surrounding
// whitespace and a leading "v" or "=" are tolerated.
func Parse(s string) (*semver.Version, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "=")
	trimmed = strings.TrimPrefix(trimmed, "v")

	v, err := semver.StrictNewVersion(trimmed)
	if err != nil {
		return nil, &InvalidVersionError{Value: s, Err: err}
	}
	return v, nil
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
// Build metadata does not take part in the ordering.
func Compare(a, b string, p Policy) (int, error) {
	va, err := parseWithFallback(a, p.Left)
	if err != nil {
		return 0, err
	}
	vb, err := parseWithFallback(b, p.Right)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Newer reports whether a is strictly newer than b.
func Newer(a, b string, p Policy) (bool, error) {
	c, err := Compare(a, b, p)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Valid reports whether s parses without falling back.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func parseWithFallback(s, fallback string) (*semver.Version, error) {
	v, err := Parse(s)
	if err == nil {
		return v, nil
	}
	if fallback == "" {
		return nil, err
	}
	fv, ferr := Parse(fallback)
	if ferr != nil {
		return nil, fmt.Errorf("fallback version: %w", ferr)
	}
	return fv, nil
}

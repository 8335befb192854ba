package cmd

import (
	"errors"

	"github.com/bianoble/registry-manager/internal/config"
	"github.com/bianoble/registry-manager/internal/engine"
	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/internal/source"
	"github.com/bianoble/registry-manager/internal/versioncmp"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitUnknown      = 1
	ExitConfig       = 2
	ExitTransport    = 3
	ExitDecode       = 4
	ExitIncompatible = 5
	ExitNothing      = 6
	ExitEncode       = 7
	ExitTree         = 8
)

// ExitCode maps an error returned by Execute onto a process exit code.
// Tree failures are checked first since they usually wrap a transport error.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, engine.ErrTreeFailed):
		return ExitTree
	case errors.Is(err, config.ErrInvalid):
		return ExitConfig
	case errors.Is(err, engine.ErrNothingToUpdate):
		return ExitNothing
	case errors.Is(err, engine.ErrIncompatibleToolchain):
		return ExitIncompatible
	case errors.Is(err, manifest.ErrEncode):
		return ExitEncode
	case errors.Is(err, manifest.ErrDecode),
		errors.Is(err, manifest.ErrDuplicateID),
		errors.Is(err, versioncmp.ErrInvalidVersion):
		return ExitDecode
	case errors.Is(err, source.ErrTransport):
		return ExitTransport
	default:
		return ExitUnknown
	}
}

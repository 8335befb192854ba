package registrymanager

import (
	"github.com/bianoble/registry-manager/internal/config"
	"github.com/bianoble/registry-manager/internal/engine"
	"github.com/bianoble/registry-manager/internal/manifest"
)

// Type aliases re-export the internal types that make up the public API.

type Config = config.Config
type Manifest = manifest.Manifest
type Extension = manifest.Extension
type Change = engine.Change
type ChangeKind = engine.ChangeKind
type ReconcileResult = engine.ReconcileResult
type SyncResult = engine.SyncResult
type Plan = engine.Plan

// Errors callers are expected to match with errors.Is.
var (
	ErrNothingToUpdate       = engine.ErrNothingToUpdate
	ErrIncompatibleToolchain = engine.ErrIncompatibleToolchain
	ErrTreeFailed            = engine.ErrTreeFailed
	ErrDecode                = manifest.ErrDecode
	ErrDuplicateID           = manifest.ErrDuplicateID
)

// SyncOptions configures a sync operation.
type SyncOptions struct {
	DryRun  bool
	Commit  bool
	Message string // overrides the configured commit message
}

// DiffResult holds the outcome of a diff.
type DiffResult struct {
	Reconcile *ReconcileResult
	Manifest  *Manifest // registry manifest, updated when there were changes
}

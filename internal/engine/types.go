package engine

import (
	"errors"
	"fmt"

	"github.com/bianoble/registry-manager/internal/manifest"
)

var (
	// ErrIncompatibleToolchain is returned when the registry requires a newer
	// types version than the repository was built with.
	ErrIncompatibleToolchain = errors.New("incompatible toolchain")

	// ErrNothingToUpdate is returned when reconciliation finds no changes.
	ErrNothingToUpdate = errors.New("nothing to update")

	// ErrTreeFailed marks failures while creating the tree or commit.
	ErrTreeFailed = errors.New("tree update failed")

	// ErrPlanFinalized is returned when a finalized plan is modified.
	ErrPlanFinalized = errors.New("plan already finalized")
)

// IncompatibleToolchainError reports the two types versions that failed the gate.
type IncompatibleToolchainError struct {
	Registry   string
	Repository string
}

func (e *IncompatibleToolchainError) Error() string {
	return fmt.Sprintf("%s: the repository was built with types version %s, the registry expects %s or higher",
		ErrIncompatibleToolchain, e.Repository, e.Registry)
}

func (e *IncompatibleToolchainError) Is(target error) bool {
	return target == ErrIncompatibleToolchain
}

// ChangeKind says why an extension ended up in the update.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
)

// Change records one extension that reconciliation added or updated.
type Change struct {
	ID   string
	Name string
	Kind ChangeKind
	From string // previous registry version, empty when added
	To   string
}

// ReconcileResult holds the outcome of a reconciliation.
type ReconcileResult struct {
	Changes   []Change
	Unchanged []string
}

// ChangedIDs returns the ids of changed extensions in first-encounter order.
func (r *ReconcileResult) ChangedIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Changes))
	seen := make(map[string]bool, len(r.Changes))
	for _, c := range r.Changes {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
	}
	return ids
}

// SyncResult holds the outcome of a sync run.
type SyncResult struct {
	Reconcile *ReconcileResult
	Plan      *Plan
	Manifest  *manifest.Manifest // the updated registry manifest
	BaseTree  string             // empty on dry runs
	Tree      string             // empty on dry runs
	Commit    string             // empty unless a commit was requested
}

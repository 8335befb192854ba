package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/internal/versioncmp"
)

// BuildTimeLayout formats buildTime: UTC with millisecond precision.
const BuildTimeLayout = "2006-01-02T15:04:05.000Z"

// Reconciler merges a repository manifest into a registry manifest.
type Reconciler struct {
	Now    func() time.Time // defaults to time.Now
	Logger zerolog.Logger
}

// Reconcile compares repository against registry and mutates registry so
// that it lists every new or newer extension. A newer record is inserted
// directly before the record it supersedes; new extensions are appended.
//
// registry is only modified when Reconcile succeeds. repository is never
// modified.
func (r *Reconciler) Reconcile(registry, repository *manifest.Manifest) (*ReconcileResult, error) {
	if registry == nil || repository == nil {
		return nil, fmt.Errorf("reconcile: both manifests are required")
	}

	cmp, err := versioncmp.Compare(registry.BuiltWith.Types, repository.BuiltWith.Types, versioncmp.Toolchain)
	if err != nil {
		return nil, fmt.Errorf("comparing types versions: %w", err)
	}
	if cmp > 0 {
		return nil, &IncompatibleToolchainError{Registry: registry.BuiltWith.Types, Repository: repository.BuiltWith.Types}
	}

	r.Logger.Info().Int("extensions", len(repository.Sources)).Msg("comparing the extensions of both manifests")

	result := &ReconcileResult{}
	working := make([]manifest.Extension, len(registry.Sources))
	copy(working, registry.Sources)

	for _, ext := range repository.Sources {
		log := r.Logger.With().Str("id", ext.ID).Str("version", ext.Version).Logger()

		i := indexOfID(working, ext.ID)
		if i < 0 {
			working = append(working, ext.Clone())
			result.Changes = append(result.Changes, Change{ID: ext.ID, Name: ext.Name, Kind: ChangeAdded, To: ext.Version})
			log.Info().Msg("not in the registry, adding")
			continue
		}

		current := working[i].Version
		newer, err := versioncmp.Newer(ext.Version, current, versioncmp.Extension)
		if err != nil {
			return nil, fmt.Errorf("comparing versions of extension '%s': %w", ext.ID, err)
		}
		if !newer {
			result.Unchanged = append(result.Unchanged, ext.ID)
			log.Debug().Str("registry_version", current).Msg("version unchanged, leaving untouched")
			continue
		}

		working = insertAt(working, i, ext.Clone())
		result.Changes = append(result.Changes, Change{ID: ext.ID, Name: ext.Name, Kind: ChangeUpdated, From: current, To: ext.Version})
		log.Info().Str("registry_version", current).Msg("newer version found, updating")
	}

	if len(result.Changes) == 0 {
		return result, ErrNothingToUpdate
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	registry.Sources = working
	registry.BuildTime = now().UTC().Format(BuildTimeLayout)
	registry.BuiltWith.Toolchain = repository.BuiltWith.Toolchain
	registry.BuiltWith.Types = repository.BuiltWith.Types

	r.Logger.Info().
		Int("changed", len(result.Changes)).
		Int("unchanged", len(result.Unchanged)).
		Str("build_time", registry.BuildTime).
		Msg("updated the registry manifest")

	return result, nil
}

func indexOfID(exts []manifest.Extension, id string) int {
	for i := range exts {
		if exts[i].ID == id {
			return i
		}
	}
	return -1
}

func insertAt(exts []manifest.Extension, i int, ext manifest.Extension) []manifest.Extension {
	exts = append(exts, manifest.Extension{})
	copy(exts[i+1:], exts[i:])
	exts[i] = ext
	return exts
}

package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bianoble/registry-manager/internal/config"
	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/internal/metrics"
	"github.com/bianoble/registry-manager/internal/source"
)

// Pipeline step names, used in errors, logs and metrics.
const (
	StepFetchRegistry = "fetch_registry"
	StepFetchSource   = "fetch_source"
	StepReconcile     = "reconcile"
	StepFetchFiles    = "fetch_files"
	StepFinalize      = "finalize"
	StepTree          = "tree"
	StepCommit        = "commit"
)

// SyncEngine orchestrates a registry update: it merges the source
// repository's manifest into the registry's, gathers the files of every
// changed extension and writes them into a new registry tree.
type SyncEngine struct {
	Config config.Config

	// Registry reads the published registry; Source reads the extension
	// repository. They are usually the same client.
	Registry source.ContentFetcher
	Source   source.ContentFetcher

	// Trees and Committer are only needed for non-dry runs.
	Trees     source.TreeWriter
	Committer source.Committer

	Reconciler *Reconciler
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// SyncOptions configures a sync operation.
type SyncOptions struct {
	// DryRun stops after the plan is finalized; nothing is written.
	DryRun bool

	// Commit creates a commit for the new tree and moves the registry ref.
	Commit bool

	// Message overrides the configured commit message.
	Message string
}

// Sync runs the full pipeline. On ErrNothingToUpdate the returned result
// still describes what was compared.
func (e *SyncEngine) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if !opts.DryRun && e.Trees == nil {
		return nil, fmt.Errorf("%w: no tree writer configured", ErrTreeFailed)
	}
	if opts.Commit && e.Committer == nil {
		return nil, fmt.Errorf("%w: no committer configured", ErrTreeFailed)
	}

	rec, registry, err := e.Diff(ctx)
	result := &SyncResult{Reconcile: rec, Manifest: registry}
	if err != nil {
		e.finish(err)
		return result, err
	}

	plan, err := e.populate(ctx, rec.ChangedIDs())
	if err != nil {
		e.finish(err)
		return result, err
	}
	result.Plan = plan

	err = e.step(StepFinalize, func() error { return plan.Finalize(registry) })
	if err != nil {
		e.finish(err)
		return result, err
	}

	if opts.DryRun {
		e.Logger.Info().Int("files", plan.Files()).Msg("dry run, not creating a tree")
		e.finish(nil)
		return result, nil
	}

	cfg := e.Config
	err = e.step(StepTree, func() error {
		entries, err := plan.TreeEntries()
		if err != nil {
			return err
		}
		base, err := e.Trees.GetTree(ctx, cfg.Registry.Repository, cfg.Registry.Ref)
		if err != nil {
			return fmt.Errorf("%w: reading base tree: %w", ErrTreeFailed, err)
		}
		result.BaseTree = base.SHA

		tree, err := e.Trees.CreateTree(ctx, cfg.Registry.Repository, base.SHA, entries)
		if err != nil {
			return fmt.Errorf("%w: creating tree: %w", ErrTreeFailed, err)
		}
		result.Tree = tree.SHA
		return nil
	})
	if err != nil {
		e.finish(err)
		return result, err
	}
	e.Logger.Info().Str("base_tree", result.BaseTree).Str("tree", result.Tree).Msg("created the registry tree")

	if opts.Commit {
		err = e.step(StepCommit, func() error {
			message := opts.Message
			if message == "" {
				var err error
				if message, err = cfg.Message(rec.ChangedIDs()); err != nil {
					return fmt.Errorf("%w: %w", config.ErrInvalid, err)
				}
			}
			sha, err := e.commit(ctx, result.Tree, message)
			result.Commit = sha
			return err
		})
		if err != nil {
			e.finish(err)
			return result, err
		}
		e.Logger.Info().Str("commit", result.Commit).Str("ref", cfg.Registry.Ref).Msg("updated the registry ref")
	}

	e.finish(nil)
	return result, nil
}

// Diff fetches both manifests and reconciles them. Nothing else is fetched.
// The returned manifest is the registry manifest, updated when the error is
// nil.
func (e *SyncEngine) Diff(ctx context.Context) (*ReconcileResult, *manifest.Manifest, error) {
	cfg := e.Config

	var registry, repository *manifest.Manifest
	err := e.step(StepFetchRegistry, func() error {
		m, err := e.fetchManifest(ctx, e.Registry, cfg.Registry.Repository, cfg.Registry.Ref)
		registry = m
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	err = e.step(StepFetchSource, func() error {
		m, err := e.fetchManifest(ctx, e.Source, cfg.Repository, cfg.SourceRef, manifest.WithUniqueIDs())
		repository = m
		return err
	})
	if err != nil {
		return nil, registry, err
	}

	reconciler := e.Reconciler
	if reconciler == nil {
		reconciler = &Reconciler{Logger: e.Logger}
	}

	var rec *ReconcileResult
	err = e.step(StepReconcile, func() error {
		var err error
		rec, err = reconciler.Reconcile(registry, repository)
		return err
	})
	if err != nil {
		return rec, registry, err
	}

	for _, c := range rec.Changes {
		e.Metrics.ExtensionChanged(string(c.Kind))
	}
	return rec, registry, nil
}

func (e *SyncEngine) fetchManifest(ctx context.Context, fetcher source.ContentFetcher, repo, ref string, opts ...manifest.DecodeOption) (*manifest.Manifest, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("no content fetcher configured for %s", repo)
	}

	e.Logger.Info().Str("repository", repo).Str("ref", ref).Msg("fetching the versioning file")
	f, err := fetcher.GetFile(ctx, repo, VersioningPath, ref)
	if err != nil {
		return nil, err
	}

	m, err := manifest.Decode(f.Content, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s@%s: %w", repo, ref, err)
	}
	return m, nil
}

// populate builds the plan and fetches every changed extension's files, one
// extension at a time.
func (e *SyncEngine) populate(ctx context.Context, ids []string) (*Plan, error) {
	plan := BuildPlan(ids)
	cfg := e.Config

	err := e.step(StepFetchFiles, func() error {
		for _, id := range ids {
			log := e.Logger.With().Str("id", id).Logger()
			log.Info().Msg("fetching extension files")

			if err := e.addFile(ctx, plan, id, path.Join(id, "index.js")); err != nil {
				return err
			}

			staticDir := path.Join(id, "static")
			entries, err := e.Source.ListDir(ctx, cfg.Repository, staticDir, cfg.SourceRef)
			if err != nil {
				return fmt.Errorf("extension '%s': %w", id, err)
			}
			for _, entry := range entries {
				if entry.Type != source.TypeFile {
					log.Debug().Str("path", entry.Path).Str("type", entry.Type).Msg("skipping non-file entry")
					continue
				}
				if err := e.addFile(ctx, plan, id, entry.Path); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *SyncEngine) addFile(ctx context.Context, plan *Plan, id, filePath string) error {
	cfg := e.Config
	f, err := e.Source.GetFile(ctx, cfg.Repository, filePath, cfg.SourceRef)
	if err != nil {
		return fmt.Errorf("extension '%s': %w", id, err)
	}
	if f.Type != "" && f.Type != source.TypeFile {
		return fmt.Errorf("extension '%s': %s is a %s, expected a file", id, filePath, f.Type)
	}

	key := f.Path
	if key == "" {
		key = filePath
	}
	if err := plan.Add(id, key, f.Content); err != nil {
		return err
	}
	e.Metrics.FileFetched(decodedLen(f.Content))
	e.Logger.Debug().Str("path", key).Int64("size", f.Size).Msg("fetched file")
	return nil
}

func (e *SyncEngine) commit(ctx context.Context, tree, message string) (string, error) {
	cfg := e.Config
	parent, err := e.Committer.GetRef(ctx, cfg.Registry.Repository, cfg.Registry.Ref)
	if err != nil {
		return "", fmt.Errorf("%w: reading ref: %w", ErrTreeFailed, err)
	}
	sha, err := e.Committer.CreateCommit(ctx, cfg.Registry.Repository, message, tree, []string{parent})
	if err != nil {
		return "", fmt.Errorf("%w: creating commit: %w", ErrTreeFailed, err)
	}
	if err := e.Committer.UpdateRef(ctx, cfg.Registry.Repository, cfg.Registry.Ref, sha); err != nil {
		return sha, fmt.Errorf("%w: updating ref: %w", ErrTreeFailed, err)
	}
	return sha, nil
}

// step times fn and names the step in any error it returns.
func (e *SyncEngine) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	e.Metrics.ObserveStep(name, elapsed)

	if err != nil {
		if errors.Is(err, ErrNothingToUpdate) {
			return err
		}
		e.Logger.Debug().Str("step", name).Dur("elapsed", elapsed).Err(err).Msg("step failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	e.Logger.Debug().Str("step", name).Dur("elapsed", elapsed).Msg("step done")
	return nil
}

func (e *SyncEngine) finish(err error) {
	switch {
	case err == nil:
		e.Metrics.RunFinished(metrics.OutcomeSuccess)
	case errors.Is(err, ErrNothingToUpdate):
		e.Metrics.RunFinished(metrics.OutcomeNoop)
	default:
		e.Metrics.RunFinished(metrics.OutcomeFailure)
	}
}

func decodedLen(content string) int {
	n := len(content) - strings.Count(content, "\n") - strings.Count(content, "\r")
	return base64.StdEncoding.DecodedLen(n)
}

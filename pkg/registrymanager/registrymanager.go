// Package registrymanager provides the public Go library API for
// registry-manager.
//
// registry-manager merges the built manifest of an extension repository into
// a published extension registry and writes the changed extension files,
// plus the updated manifest, into a new registry tree.
//
// # Basic Usage
//
//	cfg, _, err := config.Load(config.LoadOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := registrymanager.New(registrymanager.Options{Config: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Compare both manifests without fetching extension files
//	diff, err := client.Diff(ctx)
//
//	// Build the new registry tree
//	result, err := client.Sync(ctx, registrymanager.SyncOptions{})
package registrymanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bianoble/registry-manager/internal/config"
	"github.com/bianoble/registry-manager/internal/engine"
	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/internal/metrics"
	"github.com/bianoble/registry-manager/internal/source"
)

// Syncer runs the full registry update.
type Syncer interface {
	Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error)
}

// Differ reconciles the two manifests without fetching extension files.
type Differ interface {
	Diff(ctx context.Context) (*DiffResult, error)
}

// Options configures a registry-manager client.
type Options struct {
	// Config is required and must already be valid (see config.Load).
	Config *Config

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// HTTPClient replaces the default HTTP client for hosting API calls.
	HTTPClient source.HTTPClient

	// RegistryDir and SourceDir serve the registry or the extension
	// repository from a local checkout instead of the hosting API. A client
	// with both set never touches the network for reads.
	RegistryDir string
	SourceDir   string

	// Now replaces the clock used for buildTime.
	Now func() time.Time
}

// Client is the main entry point for the registry-manager library.
// It implements Syncer and Differ.
type Client struct {
	cfg     Config
	engine  *engine.SyncEngine
	offline bool
}

var (
	_ Syncer = (*Client)(nil)
	_ Differ = (*Client)(nil)
)

// New creates a new registry-manager Client.
func New(opts Options) (*Client, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: a configuration is required", config.ErrInvalid)
	}
	cfg := *opts.Config
	if errs := config.Validate(&cfg); len(errs) > 0 {
		return nil, &config.ValidationError{Errors: errs}
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	gh := &source.GitHubClient{
		Client:    opts.HTTPClient,
		BaseURL:   cfg.APIURL,
		Token:     cfg.Token,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.TimeoutDuration(),
		Logger:    logger.With().Str("component", "github").Logger(),
	}

	var registry, src source.ContentFetcher = gh, gh
	if opts.RegistryDir != "" {
		registry = source.NewLocalSource(cfg.Registry.Repository, opts.RegistryDir)
	}
	if opts.SourceDir != "" {
		src = source.NewLocalSource(cfg.Repository, opts.SourceDir)
	}

	eng := &engine.SyncEngine{
		Config:    cfg,
		Registry:  registry,
		Source:    src,
		Trees:     gh,
		Committer: gh,
		Reconciler: &engine.Reconciler{
			Now:    opts.Now,
			Logger: logger.With().Str("component", "reconcile").Logger(),
		},
		Logger:  logger,
		Metrics: opts.Metrics,
	}

	return &Client{
		cfg:     cfg,
		engine:  eng,
		offline: opts.RegistryDir != "" && opts.SourceDir != "",
	}, nil
}

// Config returns the configuration the client runs with.
func (c *Client) Config() Config { return c.cfg }

// Sync runs the full update: reconcile, fetch the changed extensions and,
// unless DryRun is set, create the new registry tree. ErrNothingToUpdate is
// returned together with a result describing the comparison.
func (c *Client) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	return c.engine.Sync(ctx, engine.SyncOptions{
		DryRun:  opts.DryRun,
		Commit:  opts.Commit,
		Message: opts.Message,
	})
}

// Diff reconciles both manifests and reports the changes. Only the two
// versioning files are fetched.
func (c *Client) Diff(ctx context.Context) (*DiffResult, error) {
	rec, registry, err := c.engine.Diff(ctx)
	c.engine.Metrics.RunFinished(outcome(err))
	if err != nil && !errors.Is(err, ErrNothingToUpdate) {
		return nil, err
	}
	return &DiffResult{Reconcile: rec, Manifest: registry}, err
}

// Offline reports whether both sides are read from local directories.
func (c *Client) Offline() bool { return c.offline }

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNothingToUpdate):
		return metrics.OutcomeNoop
	default:
		return metrics.OutcomeFailure
	}
}

// Decode converts transport content (base64 JSON) into a Manifest.
func Decode(content string) (*Manifest, error) {
	return manifest.Decode(content)
}

// Encode serializes a Manifest to transport content.
func Encode(m *Manifest) (string, error) {
	return manifest.Encode(m)
}

// Reconcile merges repository into registry, mutating registry on success.
func Reconcile(registry, repository *Manifest) (*ReconcileResult, error) {
	r := &engine.Reconciler{Logger: zerolog.Nop()}
	return r.Reconcile(registry, repository)
}

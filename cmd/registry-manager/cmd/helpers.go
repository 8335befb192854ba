package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/bianoble/registry-manager/internal/config"
	"github.com/bianoble/registry-manager/internal/engine"
	"github.com/bianoble/registry-manager/pkg/registrymanager"
)

const defaultEnvFile = ".env"

// loadConfig builds and validates the run configuration.
func loadConfig() (*config.Config, error) {
	cfg, layers, err := config.Load(config.LoadOptions{
		Discover: config.DiscoverOptions{ProjectPath: configPath},
		EnvFile:  resolveEnvFile(),
	})
	for _, l := range layers {
		if l.Loaded {
			logger.Debug().Str("level", string(l.Level)).Str("path", l.Path).Msg("loaded config layer")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger.Debug().
		Str("repository", cfg.Repository).
		Str("branch", cfg.Branch).
		Str("registry", cfg.Registry.Repository+"@"+cfg.Registry.Ref).
		Str("token", cfg.Redacted().Token).
		Msg("configuration")
	return cfg, nil
}

// resolveEnvFile returns the --env-file value, or .env when it exists.
func resolveEnvFile() string {
	if envFile != "" {
		return envFile
	}
	if _, err := os.Stat(defaultEnvFile); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return defaultEnvFile
}

// newClient creates a library client wired to the CLI logger and metrics.
// Non-empty directories replace the hosting API for that side.
func newClient(cfg *config.Config, registryDir, sourceDir string) (*registrymanager.Client, error) {
	return registrymanager.New(registrymanager.Options{
		Config:      cfg,
		Logger:      &logger,
		Metrics:     runMetrics,
		RegistryDir: registryDir,
		SourceDir:   sourceDir,
	})
}

// printChanges lists what reconciliation decided.
func printChanges(rec *engine.ReconcileResult) {
	if rec == nil {
		return
	}
	for _, c := range rec.Changes {
		switch c.Kind {
		case engine.ChangeAdded:
			info("  added     %s %s", c.ID, c.To)
		default:
			info("  updated   %s %s -> %s", c.ID, c.From, c.To)
		}
	}
	for _, id := range rec.Unchanged {
		detail("unchanged %s", id)
	}
}

// planSize returns the decoded size of every file in the plan.
func planSize(p *engine.Plan) int64 {
	entries, err := p.TreeEntries()
	if err != nil {
		return 0
	}
	var n int64
	for _, e := range entries {
		n += int64(len(e.Content))
	}
	return n
}

func humanSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

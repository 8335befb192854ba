package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bianoble/registry-manager/internal/engine"
	"github.com/bianoble/registry-manager/internal/logging"
	"github.com/bianoble/registry-manager/internal/metrics"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath  string
	envFile     string
	verbose     bool
	quiet       bool
	noColor     bool
	logJSON     bool
	metricsFile string
)

// Set up by the root command before any subcommand runs.
var (
	logger     = zerolog.Nop()
	runMetrics *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "registry-manager",
	Short: "Publish extension updates to an extension registry",
	Long: `registry-manager compares the versioning.json built by an extension
repository with the one published by the registry, merges every new or newer
extension into the registry manifest, and writes the changed extension files
together with the updated manifest into a new registry tree.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(os.Stderr, logging.Options{
			Level:   logging.LevelFor(verbose, quiet),
			NoColor: noColor,
			JSON:    logJSON,
		})
		if metricsFile != "" {
			runMetrics = metrics.New()
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("registry-manager %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default registry-manager.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default .env when present)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this file after the run")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()

	if metricsFile != "" && runMetrics != nil {
		if werr := runMetrics.WriteTextfile(metricsFile); werr != nil {
			logger.Warn().Err(werr).Str("path", metricsFile).Msg("could not write metrics")
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, engine.ErrNothingToUpdate):
		if !quiet {
			fmt.Fprintln(os.Stderr, "Nothing to update.")
		}
	default:
		errorf("%s", err)
	}
	return err
}

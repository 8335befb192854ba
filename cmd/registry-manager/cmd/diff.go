package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/bianoble/registry-manager/internal/engine"
)

var (
	diffRegistryDir string
	diffSourceDir   string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show which extensions a sync would add or update",
	Long: `Fetches both versioning.json files and reconciles them without fetching
any extension files or writing anything. Local checkouts can stand in for
either repository with --registry-dir and --source-dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := newClient(cfg, diffRegistryDir, diffSourceDir)
		if err != nil {
			return err
		}

		diff, err := client.Diff(cmd.Context())
		if errors.Is(err, engine.ErrNothingToUpdate) {
			if diff != nil {
				printChanges(diff.Reconcile)
			}
			info("Registry is up to date.")
			return nil
		}
		if err != nil {
			return err
		}

		printChanges(diff.Reconcile)
		info("")
		info("%d extension(s) would change, %d unchanged.",
			len(diff.Reconcile.ChangedIDs()), len(diff.Reconcile.Unchanged))
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffRegistryDir, "registry-dir", "", "read the registry from this directory")
	diffCmd.Flags().StringVar(&diffSourceDir, "source-dir", "", "read the extension repository from this directory")
	rootCmd.AddCommand(diffCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/pkg/registrymanager"
)

var (
	syncDryRun bool
	syncCommit bool
	syncOutput string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge the extension repository into the registry",
	Long: `Fetches both versioning.json files, merges every new or newer extension
into the registry manifest, fetches the files of the changed extensions and
creates a new tree on top of the registry ref.

The tree is not committed unless --commit is given. Exits with code 6 when
the registry is already up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := newClient(cfg, "", "")
		if err != nil {
			return err
		}

		result, err := client.Sync(cmd.Context(), registrymanager.SyncOptions{
			DryRun: syncDryRun,
			Commit: syncCommit,
		})
		if result != nil {
			printChanges(result.Reconcile)
		}
		if err != nil {
			return err
		}

		if syncOutput != "" {
			if err := manifest.SaveFile(syncOutput, result.Manifest); err != nil {
				return fmt.Errorf("writing %s: %w", syncOutput, err)
			}
			detail("wrote manifest to %s", syncOutput)
		}

		for _, e := range result.Plan.Entries {
			for path := range e.Files {
				detail("%-10s %s", e.Group, path)
			}
		}

		changed := len(result.Reconcile.ChangedIDs())
		info("")
		if syncDryRun {
			info("Dry run, no tree created: %d extension(s), %d file(s), %s.",
				changed, result.Plan.Files(), humanSize(planSize(result.Plan)))
			return nil
		}

		info("Sync complete: %d extension(s) changed, tree %s.", changed, result.Tree)
		if result.Commit != "" {
			info("Committed %s to %s.", result.Commit, cfg.Registry.Ref)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "build the update without creating a tree")
	syncCmd.Flags().BoolVar(&syncCommit, "commit", false, "commit the new tree and move the registry ref")
	syncCmd.Flags().StringVar(&syncOutput, "output", "", "also write the updated manifest to this file")
	syncCmd.MarkFlagsMutuallyExclusive("dry-run", "commit")
	rootCmd.AddCommand(syncCmd)
}

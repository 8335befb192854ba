package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initForce bool

const defaultConfigFile = "registry-manager.yaml"

// initTemplate is the default registry-manager.yaml scaffold. The token is
// deliberately left to the environment.
const initTemplate = `# registry-manager configuration
# The access token is read from REGISTRY_MANAGER_PAT (or a .env file).

# Extension repository whose built versioning.json is merged into the registry.
repository: paperback-community/extensions-source
branch: stable/0.9
source_ref: gh-pages

registry:
  repository: paperback-community/extensions
  ref: master

# namespace: paperback-community
# channel_prefix: stable/
# api_url: https://api.github.com
# timeout: 10s
# user_agent: paperback-community/registry-manager
# commit_message: "Update extensions"
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter registry-manager.yaml configuration",
	Long: `Creates a registry-manager.yaml file in the current directory (or at --config)
with the default registry and a placeholder extension repository.

Use --force to overwrite an existing configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := configPath
		if outPath == "" {
			outPath = defaultConfigFile
		}
		if !filepath.IsAbs(outPath) {
			abs, err := filepath.Abs(outPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			outPath = abs
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		if err := os.WriteFile(outPath, []byte(initTemplate), 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Point repository and branch at your extension repository")
		info("  2. Export REGISTRY_MANAGER_PAT with a fine-grained access token")
		info("  3. Run 'registry-manager diff' to preview, then 'registry-manager sync'")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}

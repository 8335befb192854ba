package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/internal/versioncmp"
)

var (
	checkManifests []string
	checkRegistry  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and local manifest files",
	Long: `Loads and validates the configuration without contacting the hosting API.
Each --manifest file is decoded and checked for duplicate ids and unparsable
versions. Registry manifests (--registry) may repeat ids, but every version
in them must parse; in repository manifests unparsable versions are only
reported, since they compare as 0.0.0.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		info("Configuration is valid.")

		var failed int
		for _, path := range checkManifests {
			problems, err := checkManifest(path)
			if err != nil {
				return err
			}
			if len(problems) == 0 {
				info("  ok        %s", path)
				continue
			}
			for _, p := range problems {
				info("  invalid   %s: %s", path, p)
			}
			if checkRegistry {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%w: %d manifest(s) hold unparsable versions", versioncmp.ErrInvalidVersion, failed)
		}
		return nil
	},
}

// checkManifest decodes one manifest file and returns its version problems.
func checkManifest(path string) ([]string, error) {
	var opts []manifest.DecodeOption
	if !checkRegistry {
		opts = append(opts, manifest.WithUniqueIDs())
	}

	m, err := manifest.LoadFile(path, opts...)
	if err != nil {
		return nil, err
	}

	var problems []string
	if !versioncmp.Valid(m.BuiltWith.Types) {
		problems = append(problems, fmt.Sprintf("builtWith.types '%s' is not a version", m.BuiltWith.Types))
	}
	for i, ext := range m.Sources {
		if !versioncmp.Valid(ext.Version) {
			problems = append(problems, fmt.Sprintf("sources[%d] '%s': version '%s' is not a version", i, ext.ID, ext.Version))
		}
	}
	detail("%s: %d extension(s), types %s", path, len(m.Sources), m.BuiltWith.Types)
	return problems, nil
}

func init() {
	checkCmd.Flags().StringArrayVar(&checkManifests, "manifest", nil, "manifest file to validate (repeatable)")
	checkCmd.Flags().BoolVar(&checkRegistry, "registry", false, "treat manifests as registry manifests")
	rootCmd.AddCommand(checkCmd)
}

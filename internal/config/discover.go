package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const configFileName = "registry-manager.yaml"
const configDirName = "registry-manager"

// ConfigLevel represents the precedence level of a configuration file.
type ConfigLevel string

const (
	LevelSystem  ConfigLevel = "system"
	LevelUser    ConfigLevel = "user"
	LevelProject ConfigLevel = "project"
)

// ConfigLayerInfo describes a discovered config file and its load status.
type ConfigLayerInfo struct {
	Err    error // non-nil if the file exists but failed to load
	Path   string
	Level  ConfigLevel
	Loaded bool
}

// DiscoverOptions controls how config paths are discovered.
type DiscoverOptions struct {
	// ProjectPath is the project-level config path. Empty means
	// registry-manager.yaml in the working directory.
	ProjectPath string

	// SystemConfigPath overrides the default system config path.
	// Set to a nonexistent path to skip.
	SystemConfigPath string

	// UserConfigPath overrides the default user config path.
	// Set to a nonexistent path to skip.
	UserConfigPath string
}

// DiscoverPaths returns the ordered list of config file paths to check,
// from lowest precedence (system) to highest (project), deduplicated by
// absolute path.
func DiscoverPaths(opts DiscoverOptions) []ConfigLayerInfo {
	var layers []ConfigLayerInfo
	seen := make(map[string]bool)

	add := func(level ConfigLevel, path string) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		layers = append(layers, ConfigLayerInfo{Path: path, Level: level})
	}

	add(LevelSystem, orDefault(opts.SystemConfigPath, defaultSystemConfigPath))
	add(LevelUser, orDefault(opts.UserConfigPath, defaultUserConfigPath))
	add(LevelProject, orDefault(opts.ProjectPath, func() string { return configFileName }))

	return layers
}

func orDefault(path string, def func() string) string {
	if path != "" {
		return path
	}
	return def()
}

func defaultSystemConfigPath() string {
	if runtime.GOOS == "windows" {
		pd := os.Getenv("ProgramData")
		if pd == "" {
			pd = `C:\ProgramData`
		}
		return filepath.Join(pd, configDirName, configFileName)
	}
	return filepath.Join("/etc", configDirName, configFileName)
}

func defaultUserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configDirName, configFileName)
}

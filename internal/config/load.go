package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is matched by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Environment variables read by Load.
const (
	EnvToken         = "REGISTRY_MANAGER_PAT"
	EnvRepository    = "REGISTRY_MANAGER_REPOSITORY"
	EnvBranch        = "REGISTRY_MANAGER_BRANCH"
	EnvSourceRef     = "REGISTRY_MANAGER_SOURCE_REF"
	EnvRegistry      = "REGISTRY_MANAGER_REGISTRY"
	EnvRegistryRef   = "REGISTRY_MANAGER_REGISTRY_REF"
	EnvAPIURL        = "REGISTRY_MANAGER_API_URL"
	EnvTimeout       = "REGISTRY_MANAGER_TIMEOUT"
	EnvCommitMessage = "REGISTRY_MANAGER_COMMIT_MESSAGE"
)

const (
	tokenPrefix      = "github_pat_"
	minRepositoryLen = 20
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	Discover DiscoverOptions

	// EnvFile is an optional .env file. Its values never override variables
	// already present in the environment.
	EnvFile string

	// Overrides (typically CLI flags) win over every other layer.
	Overrides *Config

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds the run configuration from defaults, config files, the .env
// file, the environment and overrides, in increasing precedence, then
// validates it. The returned layers describe which files were read.
func Load(opts LoadOptions) (*Config, []ConfigLayerInfo, error) {
	layers := DiscoverPaths(opts.Discover)
	cfg := Defaults()

	for i := range layers {
		fileCfg, err := LoadFile(layers[i].Path)
		if errors.Is(err, os.ErrNotExist) {
			if layers[i].Level == LevelProject && opts.Discover.ProjectPath != "" {
				layers[i].Err = err
				return nil, layers, fmt.Errorf("%w: %w", ErrInvalid, err)
			}
			continue
		}
		if err != nil {
			layers[i].Err = err
			return nil, layers, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		layers[i].Loaded = true
		cfg = Merge(cfg, fileCfg)
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	var dotenv map[string]string
	if opts.EnvFile != "" {
		var err error
		dotenv, err = godotenv.Read(opts.EnvFile)
		if err != nil {
			return nil, layers, fmt.Errorf("%w: reading env file %s: %w", ErrInvalid, opts.EnvFile, err)
		}
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	cfg = Merge(cfg, FromEnv(lookup))
	cfg = Merge(cfg, opts.Overrides)

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, layers, &ValidationError{Errors: errs}
	}

	return cfg, layers, nil
}

// LoadFile reads a single yaml (.yaml, .yml) or toml (.toml) config file.
// Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parsing config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	return &cfg, nil
}

// FromEnv reads the REGISTRY_MANAGER_* variables through lookup.
func FromEnv(lookup func(string) string) *Config {
	return &Config{
		Token:      lookup(EnvToken),
		Repository: lookup(EnvRepository),
		Branch:     lookup(EnvBranch),
		SourceRef:  lookup(EnvSourceRef),
		Registry: RegistryConfig{
			Repository: lookup(EnvRegistry),
			Ref:        lookup(EnvRegistryRef),
		},
		APIURL:        lookup(EnvAPIURL),
		Timeout:       lookup(EnvTimeout),
		CommitMessage: lookup(EnvCommitMessage),
	}
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Is lets callers match a ValidationError against ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})
	return v
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	// Rules the struct tags cannot express.
	if cfg.Namespace != "" && cfg.Repository != "" {
		name, ok := strings.CutPrefix(cfg.Repository, cfg.Namespace+"/")
		if !ok || name == "" || strings.Contains(name, "/") || len(cfg.Repository) < minRepositoryLen {
			errs = append(errs, fmt.Sprintf("repository: '%s' is invalid, it should be of the structure \"%s/<repository_name>\"", cfg.Repository, cfg.Namespace))
		}
	}
	if cfg.ChannelPrefix != "" && cfg.Branch != "" {
		if !strings.HasPrefix(cfg.Branch, cfg.ChannelPrefix) {
			errs = append(errs, fmt.Sprintf("branch: '%s' is invalid, it should be of the structure \"%s<version>\"", cfg.Branch, cfg.ChannelPrefix))
		}
	}
	if cfg.Registry.Repository != "" && strings.Count(cfg.Registry.Repository, "/") != 1 {
		errs = append(errs, fmt.Sprintf("registry.repository: '%s' is invalid, expected \"<owner>/<name>\"", cfg.Registry.Repository))
	}
	if cfg.CommitMessage != "" {
		if _, err := parseMessage(cfg.CommitMessage); err != nil {
			errs = append(errs, fmt.Sprintf("commit_message: %s", err))
		}
	}
	if cfg.Timeout != "" && cfg.TimeoutDuration() <= 0 {
		errs = append(errs, fmt.Sprintf("timeout: '%s' is not a positive duration", cfg.Timeout))
	}

	return errs
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: is required", field)
	case "len":
		return fmt.Sprintf("%s: must be exactly %s characters", field, fe.Param())
	case "startswith":
		return fmt.Sprintf("%s: must start with '%s'", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s: must be an absolute URL", field)
	default:
		return fmt.Sprintf("%s: failed '%s' check", field, fe.Tag())
	}
}

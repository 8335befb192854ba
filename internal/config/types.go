package config

import "time"

// Config holds everything a run needs. It is built once at startup and
// passed explicitly to the components that use it.
type Config struct {
	// Token is a fine-grained personal access token for the hosting API.
	Token string `yaml:"token" toml:"token" validate:"required,len=93,startswith=github_pat_"`

	// Repository is the extension repository ("<namespace>/<name>") whose
	// built manifest is merged into the registry.
	Repository string `yaml:"repository" toml:"repository" validate:"required"`

	// Branch is the release channel branch of the extension repository
	// ("<channel_prefix><version>").
	Branch string `yaml:"branch" toml:"branch" validate:"required"`

	// SourceRef is the ref of Repository holding the built extensions.
	SourceRef string `yaml:"source_ref" toml:"source_ref" validate:"required"`

	Registry RegistryConfig `yaml:"registry" toml:"registry"`

	Namespace     string `yaml:"namespace" toml:"namespace" validate:"required"`
	ChannelPrefix string `yaml:"channel_prefix" toml:"channel_prefix" validate:"required"`

	APIURL    string `yaml:"api_url" toml:"api_url" validate:"required,url"`
	Timeout   string `yaml:"timeout" toml:"timeout" validate:"required"`
	UserAgent string `yaml:"user_agent" toml:"user_agent" validate:"required"`

	// CommitMessage is used when a run is asked to commit the new tree.
	CommitMessage string `yaml:"commit_message" toml:"commit_message"`
}

// RegistryConfig locates the published registry.
type RegistryConfig struct {
	Repository string `yaml:"repository" toml:"repository" validate:"required"`
	Ref        string `yaml:"ref" toml:"ref" validate:"required"`
}

// Default values.
const (
	DefaultSourceRef          = "gh-pages"
	DefaultRegistryRepository = "paperback-community/extensions"
	DefaultRegistryRef        = "master"
	DefaultNamespace          = "paperback-community"
	DefaultChannelPrefix      = "stable/"
	DefaultAPIURL             = "https://api.github.com"
	DefaultTimeout            = "10s"
	DefaultUserAgent          = "paperback-community/registry-manager"
)

// Defaults returns a Config populated with the built-in defaults.
func Defaults() *Config {
	return &Config{
		SourceRef: DefaultSourceRef,
		Registry: RegistryConfig{
			Repository: DefaultRegistryRepository,
			Ref:        DefaultRegistryRef,
		},
		Namespace:     DefaultNamespace,
		ChannelPrefix: DefaultChannelPrefix,
		APIURL:        DefaultAPIURL,
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
	}
}

// TimeoutDuration returns the parsed per-request timeout, or zero when it
// does not parse (Validate reports that case).
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Message renders the commit message for an update of the given
// extensions, using CommitMessage as the template when set.
func (c *Config) Message(changed []string) (string, error) {
	tmpl := c.CommitMessage
	if tmpl == "" {
		tmpl = DefaultCommitMessage
	}
	return RenderMessage(tmpl, MessageData{
		Repository: c.Repository,
		Branch:     c.Branch,
		Changed:    changed,
		Count:      len(changed),
	})
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Token != "" {
		c.Token = tokenPrefix + "****"
	}
	return c
}

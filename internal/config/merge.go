package config

import "strings"

// Merge combines two configs where non-empty overlay fields take precedence.
func Merge(base, overlay *Config) *Config {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}

	return &Config{
		Token:      pick(base.Token, overlay.Token),
		Repository: pick(base.Repository, overlay.Repository),
		Branch:     pick(base.Branch, overlay.Branch),
		SourceRef:  pick(base.SourceRef, overlay.SourceRef),
		Registry: RegistryConfig{
			Repository: pick(base.Registry.Repository, overlay.Registry.Repository),
			Ref:        pick(base.Registry.Ref, overlay.Registry.Ref),
		},
		Namespace:     pick(base.Namespace, overlay.Namespace),
		ChannelPrefix: pick(base.ChannelPrefix, overlay.ChannelPrefix),
		APIURL:        pick(base.APIURL, overlay.APIURL),
		Timeout:       pick(base.Timeout, overlay.Timeout),
		UserAgent:     pick(base.UserAgent, overlay.UserAgent),
		CommitMessage: pick(base.CommitMessage, overlay.CommitMessage),
	}
}

// MergeAll merges configs in order (lowest precedence first).
func MergeAll(configs ...*Config) *Config {
	var result *Config
	for _, c := range configs {
		result = Merge(result, c)
	}
	return result
}

func pick(base, overlay string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

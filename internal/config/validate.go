package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpages/internal/errors"
)

// Validate checks invariants that defaults cannot repair. It assumes
// ApplyDefaults has already run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Repository.URL) == "" {
		return errors.ConfigError("repository.url is required")
	}
	if c.Repository.Name == "" {
		c.Repository.Name = deriveRepoName(c.Repository.URL)
	}

	if c.Repository.Auth != nil {
		switch c.Repository.Auth.Type {
		case AuthTypeNone, AuthTypeSSH, AuthTypeToken, AuthTypeBasic, "":
		default:
			return errors.ConfigError("unsupported auth type").WithContext("type", string(c.Repository.Auth.Type))
		}
	}

	switch c.Toolchain.Profile {
	case ProfileMinimal, ProfileFull:
	default:
		return errors.ConfigError("toolchain.profile must be minimal or full").WithContext("profile", string(c.Toolchain.Profile))
	}

	if filepath.IsAbs(c.DocGen.OutputDir) {
		return errors.ConfigError("docgen.output_dir must be relative to the checkout").WithContext("output_dir", c.DocGen.OutputDir)
	}

	if c.Publish.Branch == c.Repository.Branch {
		return errors.ConfigError("publish.branch must differ from the source branch").
			WithContext("branch", c.Publish.Branch)
	}

	switch c.Build.Retry.Mode {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return errors.ConfigError("build.retry.mode must be fixed, linear or exponential").
			WithContext("mode", string(c.Build.Retry.Mode))
	}

	return nil
}

// deriveRepoName extracts a repository name from its URL (last path segment,
// .git suffix stripped).
func deriveRepoName(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return fmt.Sprintf("repo-%d", len(url))
	}
	return trimmed
}
